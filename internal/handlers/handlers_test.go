package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ppplay-api/internal/auth"
	"ppplay-api/internal/config"
	"ppplay-api/internal/contentfilter"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
	"ppplay-api/internal/ratelimit"
	"ppplay-api/internal/services"
	"ppplay-api/internal/testutil"
)

const adminEmail = "admin@ppplay.com"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
	svc    Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	auth.InitJWT("handler-test-secret")

	db := testutil.NewSQLiteDB(t)
	points := config.DefaultPointsConfig()
	loc := time.UTC
	filter := contentfilter.New()
	publisher := events.NewRecorder()
	limiter := ratelimit.NewMemoryLimiter(0)
	t.Cleanup(limiter.Close)

	ledger := services.NewLedgerService(db, points)
	notifications := services.NewNotificationService(db, publisher)
	resolution := services.NewMarketResolutionService(db, ledger, notifications, publisher, points)
	comments := services.NewCommentService(db, filter, limiter, ratelimit.Rule{Action: "comment", Limit: 1, Window: 10 * time.Second})

	svc := Services{
		Auth:          services.NewAuthService(db, ledger),
		Users:         services.NewUserService(db, ledger, filter, points, loc),
		Ledger:        ledger,
		Markets:       services.NewMarketService(db, ledger, limiter, ratelimit.Rule{Action: "market_create", Limit: 3, Window: time.Hour}, filter, publisher, points),
		Predictions:   services.NewPredictionService(db, ledger, publisher, points, loc),
		Attendance:    services.NewAttendanceService(db, ledger, notifications, publisher, points, loc),
		Leaderboard:   services.NewLeaderboardService(db, loc),
		Notifications: notifications,
		Comments:      comments,
		Admin:         services.NewAdminService(db, ledger, notifications, resolution, comments, publisher, points),
		Export:        services.NewExportService(db, loc),
	}

	router := NewRouter(svc, RouterConfig{
		Allowlist: auth.NewAllowlist([]string{adminEmail}),
		Location:  loc,
	})
	return &testServer{db: db, router: router, svc: svc}
}

func token(t *testing.T, userID uint, email string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, email, time.Hour)
	require.NoError(t, err)
	return tok
}

func userToken(t *testing.T, userID uint) string {
	return token(t, userID, fmt.Sprintf("user%d@example.com", userID))
}

func (s *testServer) do(t *testing.T, method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// fund tops up a user's available balance through the ledger
func (s *testServer) fund(t *testing.T, userID uint, amount int64) {
	t.Helper()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		_, err := s.svc.Ledger.Credit(tx, services.LedgerEntry{
			UserID:      userID,
			Amount:      amount,
			Type:        models.TxAdminAdjustment,
			Description: "test funding",
		})
		return err
	})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestMe_ProvisionsOnFirstRequest(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/auth/me", userToken(t, 7), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, float64(7), user["id"])
	assert.NotEmpty(t, user["nickname"])
	assert.Equal(t, "user", body["role"])

	var account models.PointsAccount
	require.NoError(t, s.db.Where("user_id = ?", 7).First(&account).Error)
	assert.Equal(t, int64(100), account.AvailablePoints)
}

func TestMarketLifecycle(t *testing.T) {
	s := newTestServer(t)
	creator := userToken(t, 1)
	voter := userToken(t, 2)
	admin := token(t, 99, adminEmail)

	create := map[string]interface{}{
		"title":         "Will the home team win on Sunday?",
		"category_slug": "sports",
		"option_yes":    "Win",
		"option_no":     "Lose",
		"closes_at":     time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	}

	w := s.do(t, http.MethodPost, "/api/markets/create", creator, create)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "costs 1000 points")

	s.fund(t, 1, 1000)
	w = s.do(t, http.MethodPost, "/api/markets/create", creator, create)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(100), body["points_left"])
	marketID := uint(body["market"].(map[string]interface{})["id"].(float64))

	w = s.do(t, http.MethodPost, "/api/markets/approve", creator, map[string]interface{}{"market_id": marketID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/markets/approve", creator, map[string]interface{}{"market_id": marketID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/markets/approve", admin, map[string]interface{}{"market_id": marketID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/admin/markets/approve", admin, map[string]interface{}{"market_id": marketID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	vote := map[string]interface{}{"market_id": marketID, "predicted_option": "yes"}
	w = s.do(t, http.MethodPost, "/api/predictions/create", voter, vote)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, float64(5), body["points_earned"])
	assert.Equal(t, float64(1), body["daily_votes_used"])

	w = s.do(t, http.MethodPost, "/api/predictions/create", voter, vote)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/predictions/create", voter, map[string]interface{}{"market_id": marketID, "predicted_option": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/markets/%d", marketID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	market := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), market["yes_count"])
	assert.Equal(t, "approved", market["status"])

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/markets/%d/activity", marketID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/markets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	// voting is still open
	w = s.do(t, http.MethodPost, "/api/admin/markets/settle", admin, map[string]interface{}{"market_id": marketID, "result": "yes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/markets/%d", marketID), admin, map[string]interface{}{"reason": "duplicate question"})
	require.Equal(t, http.StatusOK, w.Code)
	var removed models.Notification
	require.NoError(t, s.db.Where("user_id = ? AND type = ?", 1, models.NotifyMarketRejected).First(&removed).Error)
	assert.Contains(t, removed.Message, "duplicate question")

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/markets/%d/restore", marketID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", decode(t, w)["market"].(map[string]interface{})["status"])

	w = s.do(t, http.MethodGet, "/api/admin/logs", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["count"])
}

func TestBadIDs(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/markets/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/markets/12345", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/comments", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommentRateLimit(t *testing.T) {
	s := newTestServer(t)
	tok := userToken(t, 3)

	market := models.Market{
		Title:        "Rain on the weekend?",
		CategorySlug: "weather",
		OptionYes:    "Rain",
		OptionNo:     "Dry",
		Status:       models.MarketStatusApproved,
		ClosesAt:     time.Now().Add(time.Hour).UTC(),
		CreatorID:    1,
	}
	require.NoError(t, s.db.Create(&market).Error)

	w := s.do(t, http.MethodPost, "/api/comments", tok, map[string]interface{}{"marketId": market.ID, "content": "Bringing an umbrella"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/comments", tok, map[string]interface{}{"marketId": market.ID, "content": "Second thoughts"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Greater(t, decode(t, w)["retry_after"], float64(0))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/comments?marketId=%d", market.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["comments"], 1)
}

func TestAttendanceAndNotifications(t *testing.T) {
	s := newTestServer(t)
	tok := userToken(t, 4)

	w := s.do(t, http.MethodPost, "/api/attendance", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(100), data["pointsEarned"])

	w = s.do(t, http.MethodPost, "/api/attendance", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/attendance", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["data"].(map[string]interface{})["checkedIn"])

	w = s.do(t, http.MethodGet, "/api/notifications", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["unreadCount"])

	w = s.do(t, http.MethodPatch, "/api/notifications", tok, map[string]interface{}{"markAll": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["updated"])

	w = s.do(t, http.MethodPatch, "/api/notifications", tok, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/notifications?all=true", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["deleted"])
}

func TestLeaderboardAndProfile(t *testing.T) {
	s := newTestServer(t)
	tok := userToken(t, 5)

	w := s.do(t, http.MethodGet, "/api/user/profile", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	points := decode(t, w)["points"].(map[string]interface{})
	assert.Equal(t, float64(100), points["available"])

	w = s.do(t, http.MethodGet, "/api/leaderboard", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["rankings"], 1)
	assert.NotNil(t, body["myRanking"])

	w = s.do(t, http.MethodGet, "/api/leaderboard?type=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/user/transactions?type=signup_bonus", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["transactions"], 1)

	w = s.do(t, http.MethodPatch, "/api/user/nickname", tok, map[string]interface{}{"nickname": "새로운이름"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/admin/check", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["isAdmin"])
}

func TestAdminExportAndAdjust(t *testing.T) {
	s := newTestServer(t)
	admin := token(t, 99, adminEmail)
	s.do(t, http.MethodGet, "/auth/me", userToken(t, 6), nil)

	w := s.do(t, http.MethodPost, "/api/admin/points/adjust", admin, map[string]interface{}{"user_id": 6, "amount": -30, "reason": "duplicate reward"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var account models.PointsAccount
	require.NoError(t, s.db.Where("user_id = ?", 6).First(&account).Error)
	assert.Equal(t, int64(70), account.AvailablePoints)

	w = s.do(t, http.MethodGet, "/api/admin/export/transactions", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "transactions_")
	assert.NotZero(t, w.Body.Len())

	w = s.do(t, http.MethodGet, "/api/admin/export/transactions?from=2026-13-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
