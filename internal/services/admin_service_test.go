package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

var testAdmin = Actor{ID: 100, Email: "admin@ppplay.com"}

func pendingMarket(t *testing.T, env *testEnv) *models.Market {
	t.Helper()
	env.seedUser(t, 1, 1000)
	market, _, err := env.markets.CreateMarket(context.Background(), 1, validMarketInput(env))
	require.NoError(t, err)
	return market
}

func adminLogs(t *testing.T, env *testEnv, action string) []models.AdminLog {
	t.Helper()
	var logs []models.AdminLog
	require.NoError(t, env.db.Where("action = ?", action).Find(&logs).Error)
	return logs
}

func TestApproveMarket(t *testing.T) {
	env := newTestEnv(t)
	market := pendingMarket(t, env)
	ctx := context.Background()

	approved, err := env.admin.ApproveMarket(ctx, testAdmin, market.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusApproved, approved.Status)
	assert.NotNil(t, env.market(t, market.ID).ApprovedAt)

	account := env.account(t, 1)
	assert.Equal(t, int64(100), account.AvailablePoints)
	assert.Equal(t, int64(1100), account.TotalPoints)
	assert.Len(t, env.transactions(t, 1, models.TxCreatorBonus), 1)

	var note models.Notification
	require.NoError(t, env.db.Where("user_id = ? AND type = ?", 1, models.NotifyMarketApproved).First(&note).Error)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(note.Data, &data))
	assert.EqualValues(t, market.ID, data["market_id"])

	logs := adminLogs(t, env, ActionApproveMarket)
	require.Len(t, logs, 1)
	assert.Equal(t, testAdmin.Email, logs[0].AdminEmail)
	require.NotNil(t, logs[0].TargetID)
	assert.Equal(t, market.ID, *logs[0].TargetID)

	// approving twice pays nothing more
	_, err = env.admin.ApproveMarket(ctx, testAdmin, market.ID)
	assert.ErrorIs(t, err, ErrMarketNotPending)
	assert.Len(t, env.transactions(t, 1, models.TxCreatorBonus), 1)

	assert.Contains(t, env.recorder.Subjects(), events.SubjectMarketApproved)
}

func TestRejectMarket_RefundsFeeOnce(t *testing.T) {
	env := newTestEnv(t)
	market := pendingMarket(t, env)
	ctx := context.Background()
	assert.Equal(t, int64(0), env.account(t, 1).AvailablePoints)

	rejected, err := env.admin.RejectMarket(ctx, testAdmin, market.ID, "duplicate question")
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusCancelled, rejected.Status)
	assert.True(t, rejected.IsClosed)

	m := env.market(t, market.ID)
	assert.Equal(t, "duplicate question", m.ResultDescription)

	account := env.account(t, 1)
	assert.Equal(t, int64(1000), account.AvailablePoints)
	assert.Equal(t, int64(1000), account.TotalPoints)

	refunds := env.transactions(t, 1, models.TxPredictionRefund)
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(1000), refunds[0].Amount)

	_, err = env.admin.RejectMarket(ctx, testAdmin, market.ID, "again")
	assert.ErrorIs(t, err, ErrMarketNotPending)
	assert.Len(t, env.transactions(t, 1, models.TxPredictionRefund), 1)

	_, err = env.admin.ApproveMarket(ctx, testAdmin, market.ID)
	assert.ErrorIs(t, err, ErrMarketNotPending)
}

func TestSettleMarket_LogsAction(t *testing.T) {
	env := newTestEnv(t)
	market := votingMarket(t, env)

	summary, err := env.admin.SettleMarket(context.Background(), testAdmin, market.ID, models.ResultNo, "Officially postponed")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Winners)

	logs := adminLogs(t, env, ActionSettleMarket)
	require.Len(t, logs, 1)
	m := env.market(t, market.ID)
	assert.Equal(t, testAdmin.Email, *m.ConfirmedBy)
	assert.Equal(t, "Officially postponed", m.ResultDescription)
}

func TestDeleteAndRestoreMarket(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	market := env.seedMarket(t, 1, models.MarketStatusApproved, env.clock.now().Add(time.Hour))
	ctx := context.Background()

	deleted, err := env.admin.DeleteMarket(ctx, testAdmin, market.ID, " spam ")
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusDeleted, deleted.Status)
	assert.True(t, env.market(t, market.ID).IsClosed)

	_, err = env.admin.DeleteMarket(ctx, testAdmin, market.ID, "")
	assert.ErrorIs(t, err, ErrMarketDeleted)

	var notes []models.Notification
	require.NoError(t, env.db.Where("user_id = ? AND type = ?", 1, models.NotifyMarketRejected).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, ": spam")

	restored, err := env.admin.RestoreMarket(ctx, testAdmin, market.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusApproved, restored.Status)
	assert.False(t, env.market(t, market.ID).IsClosed)

	_, err = env.admin.RestoreMarket(ctx, testAdmin, market.ID)
	assert.ErrorIs(t, err, ErrMarketNotDeleted)

	assert.Len(t, adminLogs(t, env, ActionDeleteMarket), 1)
	assert.Len(t, adminLogs(t, env, ActionRestoreMarket), 1)
}

func TestRestoreMarket_SettledMarketStaysClosed(t *testing.T) {
	env := newTestEnv(t)
	market := votingMarket(t, env)
	ctx := context.Background()

	_, err := env.admin.SettleMarket(ctx, testAdmin, market.ID, models.ResultYes, "")
	require.NoError(t, err)
	_, err = env.admin.DeleteMarket(ctx, testAdmin, market.ID, "")
	require.NoError(t, err)

	restored, err := env.admin.RestoreMarket(ctx, testAdmin, market.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusClosed, restored.Status)

	m := env.market(t, market.ID)
	assert.Equal(t, models.MarketStatusClosed, m.Status)
	assert.True(t, m.IsClosed)
	assert.Nil(t, m.DeletedFrom)
	require.NotNil(t, m.Result)
	assert.Equal(t, models.ResultYes, *m.Result)

	page, err := env.markets.ListMarkets(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Markets)

	_, err = env.predictions.CastVote(ctx, 4, market.ID, models.OptionNo)
	assert.ErrorIs(t, err, ErrMarketNotOpen)
}

func TestRestoreMarket_PendingMarketNeedsApproval(t *testing.T) {
	env := newTestEnv(t)
	market := pendingMarket(t, env)
	env.seedUser(t, 2, 100)
	ctx := context.Background()

	_, err := env.admin.DeleteMarket(ctx, testAdmin, market.ID, "")
	require.NoError(t, err)

	restored, err := env.admin.RestoreMarket(ctx, testAdmin, market.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusPending, restored.Status)

	m := env.market(t, market.ID)
	assert.Equal(t, models.MarketStatusPending, m.Status)
	assert.False(t, m.IsClosed)
	assert.Nil(t, m.ApprovedAt)
	assert.Empty(t, env.transactions(t, 1, models.TxCreatorBonus))

	_, err = env.predictions.CastVote(ctx, 2, market.ID, models.OptionYes)
	assert.ErrorIs(t, err, ErrMarketNotOpen)

	_, err = env.admin.ApproveMarket(ctx, testAdmin, market.ID)
	require.NoError(t, err)
	assert.Len(t, env.transactions(t, 1, models.TxCreatorBonus), 1)

	_, err = env.predictions.CastVote(ctx, 2, market.ID, models.OptionYes)
	require.NoError(t, err)
}

func TestRestoreMarket_PastDeadlineStaysClosed(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	market := env.seedMarket(t, 1, models.MarketStatusApproved, env.clock.now().Add(time.Hour))
	ctx := context.Background()

	_, err := env.admin.DeleteMarket(ctx, testAdmin, market.ID, "")
	require.NoError(t, err)
	env.clock.add(2 * time.Hour)

	restored, err := env.admin.RestoreMarket(ctx, testAdmin, market.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusApproved, restored.Status)
	assert.True(t, env.market(t, market.ID).IsClosed)
}

func TestListPendingAndAllMarkets(t *testing.T) {
	env := newTestEnv(t)
	future := env.clock.now().Add(time.Hour)
	env.seedMarket(t, 1, models.MarketStatusPending, future)
	env.seedMarket(t, 1, models.MarketStatusPending, future)
	env.seedMarket(t, 1, models.MarketStatusApproved, future)
	ctx := context.Background()

	pending, err := env.admin.ListPendingMarkets(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	all, err := env.admin.ListAllMarkets(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	approved, err := env.admin.ListAllMarkets(ctx, models.MarketStatusApproved, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), approved.Total)
}

func TestAdjustPoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	ctx := context.Background()

	entry, err := env.admin.AdjustPoints(ctx, testAdmin, 1, 250, "event prize")
	require.NoError(t, err)
	assert.Equal(t, int64(350), entry.BalanceAfter)

	_, err = env.admin.AdjustPoints(ctx, testAdmin, 1, -1000, "too much")
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	_, err = env.admin.AdjustPoints(ctx, testAdmin, 1, 10, " ")
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))

	assert.Len(t, adminLogs(t, env, ActionAdjustPoints), 1)
}

func TestAdminDeleteComment(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	market := env.seedMarket(t, 1, models.MarketStatusApproved, env.clock.now().Add(time.Hour))
	ctx := context.Background()

	c, err := env.comments.Create(ctx, 1, market.ID, "Looks likely to me", nil)
	require.NoError(t, err)

	deleted, err := env.admin.DeleteComment(ctx, testAdmin, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Len(t, adminLogs(t, env, ActionDeleteComment), 1)

	views, total, err := env.comments.ListForModeration(ctx, market.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, views, 1)
	assert.True(t, views[0].IsDeleted)
}

func TestAdminCreateNotification(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	ctx := context.Background()

	n, err := env.admin.CreateNotification(ctx, testAdmin, NotificationInput{
		UserID:  1,
		Type:    models.NotifySystem,
		Title:   "Maintenance",
		Message: "Back in 10 minutes",
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.Len(t, adminLogs(t, env, ActionCreateNotification), 1)

	_, err = env.admin.CreateNotification(ctx, testAdmin, NotificationInput{UserID: 404, Type: models.NotifySystem, Title: "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetPlatformStats(t *testing.T) {
	env := newTestEnv(t)
	env.admin.now = time.Now
	votingMarket(t, env)
	env.seedMarket(t, 1, models.MarketStatusPending, env.clock.now().Add(time.Hour))
	_, err := env.admin.AdjustPoints(context.Background(), testAdmin, 1, -50, "penalty")
	require.NoError(t, err)

	stats, err := env.admin.GetPlatformStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalMarkets)
	assert.Equal(t, int64(1), stats.Markets[models.MarketStatusApproved])
	assert.Equal(t, int64(1), stats.Markets[models.MarketStatusPending])
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(3), stats.RecentSignups)
	assert.Equal(t, int64(3), stats.TotalPredictions)
	assert.Equal(t, int64(315), stats.TotalPoints)
	assert.Equal(t, int64(265), stats.AvailablePoints)
	assert.Equal(t, int64(50), stats.LockedPoints)
	// signup bonuses plus three participation rewards
	assert.Equal(t, int64(315), stats.PointsEarnedWeek)
	assert.Equal(t, int64(50), stats.PointsSpentWeek)
}
