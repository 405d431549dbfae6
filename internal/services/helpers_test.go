package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ppplay-api/internal/config"
	"ppplay-api/internal/contentfilter"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
	"ppplay-api/internal/ratelimit"
	"ppplay-api/internal/testutil"
)

var kst = time.FixedZone("KST", 9*60*60)

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time      { return c.t }
func (c *testClock) add(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	db       *gorm.DB
	clock    *testClock
	points   config.PointsConfig
	recorder *events.Recorder
	limiter  *ratelimit.MemoryLimiter

	ledger        *LedgerService
	auth          *AuthService
	users         *UserService
	markets       *MarketService
	predictions   *PredictionService
	resolution    *MarketResolutionService
	attendance    *AttendanceService
	leaderboard   *LeaderboardService
	notifications *NotificationService
	comments      *CommentService
	admin         *AdminService
	export        *ExportService
}

var (
	looseCreateRule  = ratelimit.Rule{Action: "market_create", Limit: 100, Window: time.Hour}
	looseCommentRule = ratelimit.Rule{Action: "comment", Limit: 100, Window: 10 * time.Second}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	// 2026-03-10 12:00 in Seoul
	clock := &testClock{t: time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)}
	points := config.DefaultPointsConfig()
	recorder := events.NewRecorder()
	limiter := ratelimit.NewMemoryLimiter(0)
	t.Cleanup(limiter.Close)
	filter := contentfilter.New()

	env := &testEnv{
		db:       db,
		clock:    clock,
		points:   points,
		recorder: recorder,
		limiter:  limiter,
	}

	env.ledger = NewLedgerService(db, points)
	env.auth = NewAuthService(db, env.ledger)
	env.users = NewUserService(db, env.ledger, filter, points, kst)
	env.users.now = clock.now
	env.notifications = NewNotificationService(db, recorder)
	env.notifications.now = clock.now
	env.markets = NewMarketService(db, env.ledger, limiter, looseCreateRule, filter, recorder, points)
	env.markets.now = clock.now
	env.predictions = NewPredictionService(db, env.ledger, recorder, points, kst)
	env.predictions.now = clock.now
	env.resolution = NewMarketResolutionService(db, env.ledger, env.notifications, recorder, points)
	env.resolution.now = clock.now
	env.attendance = NewAttendanceService(db, env.ledger, env.notifications, recorder, points, kst)
	env.attendance.now = clock.now
	env.leaderboard = NewLeaderboardService(db, kst)
	env.leaderboard.now = clock.now
	env.comments = NewCommentService(db, filter, limiter, looseCommentRule)
	env.admin = NewAdminService(db, env.ledger, env.notifications, env.resolution, env.comments, recorder, points)
	env.admin.now = clock.now
	env.export = NewExportService(db, kst)

	return env
}

// seedUser provisions a user and tops the balance up to available points
func (e *testEnv) seedUser(t *testing.T, id uint, available int64) *models.User {
	t.Helper()
	ctx := context.Background()

	user, err := e.auth.EnsureUser(ctx, id, fmt.Sprintf("user%d@example.com", id))
	require.NoError(t, err)

	if delta := available - e.points.StartingBalance; delta != 0 {
		err = e.db.Transaction(func(tx *gorm.DB) error {
			_, err := e.ledger.Adjust(tx, LedgerEntry{UserID: id, Amount: delta, Description: "seed"})
			return err
		})
		require.NoError(t, err)
	}
	return user
}

func (e *testEnv) seedMarket(t *testing.T, creatorID uint, status models.MarketStatus, closesAt time.Time) *models.Market {
	t.Helper()
	m := models.Market{
		Title:        "Will it rain tomorrow?",
		CategorySlug: "weather",
		OptionYes:    "Rain",
		OptionNo:     "No rain",
		Status:       status,
		ClosesAt:     closesAt.UTC(),
		CreatorID:    creatorID,
		CreationFee:  e.points.MarketCreationFee,
	}
	require.NoError(t, e.db.Create(&m).Error)
	return &m
}

func (e *testEnv) account(t *testing.T, userID uint) models.PointsAccount {
	t.Helper()
	var a models.PointsAccount
	require.NoError(t, e.db.Where("user_id = ?", userID).First(&a).Error)
	return a
}

func (e *testEnv) market(t *testing.T, id uint) models.Market {
	t.Helper()
	var m models.Market
	require.NoError(t, e.db.First(&m, id).Error)
	return m
}

func (e *testEnv) transactions(t *testing.T, userID uint, txType models.TransactionType) []models.PointTransaction {
	t.Helper()
	var rows []models.PointTransaction
	require.NoError(t, e.db.Where("user_id = ? AND transaction_type = ?", userID, txType).Order("id").Find(&rows).Error)
	return rows
}
