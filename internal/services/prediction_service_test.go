package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

func TestCastVote_RecordsVoteAndReward(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	market := env.seedMarket(t, 2, models.MarketStatusApproved, env.clock.now().Add(time.Hour))

	res, err := env.predictions.CastVote(context.Background(), 1, market.ID, models.OptionYes)
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.Prediction.ParticipationReward)
	assert.False(t, res.Prediction.IsSettled)
	assert.Nil(t, res.Prediction.IsCorrect)
	assert.Equal(t, int64(1), res.MarketStats.TotalParticipants)
	assert.Equal(t, int64(1), res.MarketStats.YesCount)
	assert.Equal(t, int64(0), res.MarketStats.NoCount)
	assert.Equal(t, int64(5), res.MarketStats.TotalPointsPool)
	assert.Equal(t, 1, res.DailyVotesUsed)

	m := env.market(t, market.ID)
	assert.Equal(t, int64(5), m.YesPoints)
	assert.Equal(t, int64(0), m.NoPoints)

	account := env.account(t, 1)
	assert.Equal(t, int64(105), account.AvailablePoints)
	assert.Equal(t, int64(105), account.TotalPoints)
	assert.Equal(t, 1, account.DailyVotes)
	assert.Equal(t, "2026-03-10", account.DailyVotesDate)
	assert.Equal(t, 1, account.TotalVotes)

	txs := env.transactions(t, 1, models.TxPredictionParticipation)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].PredictionID)
	assert.Equal(t, res.Prediction.ID, *txs[0].PredictionID)

	assert.Equal(t, []string{events.SubjectPredictionCreated}, env.recorder.Subjects())
}

func TestCastVote_RejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	market := env.seedMarket(t, 2, models.MarketStatusActive, env.clock.now().Add(time.Hour))
	ctx := context.Background()

	_, err := env.predictions.CastVote(ctx, 1, market.ID, models.OptionYes)
	require.NoError(t, err)

	_, err = env.predictions.CastVote(ctx, 1, market.ID, models.OptionNo)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	assert.Equal(t, int64(105), env.account(t, 1).AvailablePoints)
	assert.Equal(t, int64(1), env.market(t, market.ID).TotalParticipants)
}

func TestCastVote_MarketState(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	ctx := context.Background()
	now := env.clock.now()

	_, err := env.predictions.CastVote(ctx, 1, 404, models.OptionYes)
	assert.ErrorIs(t, err, ErrMarketNotFound)

	pending := env.seedMarket(t, 2, models.MarketStatusPending, now.Add(time.Hour))
	_, err = env.predictions.CastVote(ctx, 1, pending.ID, models.OptionYes)
	assert.ErrorIs(t, err, ErrMarketNotOpen)

	expired := env.seedMarket(t, 2, models.MarketStatusApproved, now)
	_, err = env.predictions.CastVote(ctx, 1, expired.ID, models.OptionYes)
	assert.ErrorIs(t, err, ErrMarketClosed)

	closed := env.seedMarket(t, 2, models.MarketStatusApproved, now.Add(time.Hour))
	require.NoError(t, env.db.Model(closed).Update("is_closed", true).Error)
	_, err = env.predictions.CastVote(ctx, 1, closed.ID, models.OptionYes)
	assert.ErrorIs(t, err, ErrMarketClosed)

	open := env.seedMarket(t, 2, models.MarketStatusApproved, now.Add(time.Hour))
	_, err = env.predictions.CastVote(ctx, 1, open.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidOption)

	assert.Equal(t, int64(100), env.account(t, 1).AvailablePoints)
}

func TestCastVote_DailyCap(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	ctx := context.Background()
	market := env.seedMarket(t, 2, models.MarketStatusApproved, env.clock.now().Add(time.Hour))

	require.NoError(t, env.db.Model(&models.PointsAccount{}).Where("user_id = ?", 1).
		Updates(map[string]interface{}{"daily_votes": 10, "daily_votes_date": "2026-03-10"}).Error)

	_, err := env.predictions.CastVote(ctx, 1, market.ID, models.OptionNo)
	assert.ErrorIs(t, err, ErrDailyVoteLimit)
	assert.Equal(t, apperrors.ErrCodeRateLimitExceeded, apperrors.CodeOf(err))

	// a counter from an earlier day no longer counts
	require.NoError(t, env.db.Model(&models.PointsAccount{}).Where("user_id = ?", 1).
		Update("daily_votes_date", "2026-03-09").Error)

	res, err := env.predictions.CastVote(ctx, 1, market.ID, models.OptionNo)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DailyVotesUsed)
	assert.Equal(t, int64(1), res.MarketStats.NoCount)
}

func TestCastVote_DayBoundaryFollowsLocalTime(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	// 15:30 UTC is already the next day in Seoul
	env.clock.t = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	market := env.seedMarket(t, 2, models.MarketStatusApproved, env.clock.now().Add(time.Hour))

	_, err := env.predictions.CastVote(context.Background(), 1, market.ID, models.OptionYes)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", env.account(t, 1).DailyVotesDate)
}

func TestResetStaleDailyVotes(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	env.seedUser(t, 2, 100)

	require.NoError(t, env.db.Model(&models.PointsAccount{}).Where("user_id = ?", 1).
		Updates(map[string]interface{}{"daily_votes": 7, "daily_votes_date": "2026-03-09"}).Error)
	require.NoError(t, env.db.Model(&models.PointsAccount{}).Where("user_id = ?", 2).
		Updates(map[string]interface{}{"daily_votes": 3, "daily_votes_date": "2026-03-10"}).Error)

	reset, err := env.predictions.ResetStaleDailyVotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)
	assert.Equal(t, 0, env.account(t, 1).DailyVotes)
	assert.Equal(t, 3, env.account(t, 2).DailyVotes)
}
