package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

func TestStreakBonus(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		day  int
		want int64
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 50},
		{6, 50},
		{7, 500},
		{14, 500},
		{21, 500},
		{22, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, env.attendance.StreakBonus(tt.day), "day %d", tt.day)
	}
}

func TestCheckIn_FirstDay(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	ctx := context.Background()

	res, err := env.attendance.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.PointsEarned)
	assert.Equal(t, int64(0), res.BonusPoints)
	assert.Equal(t, 1, res.ConsecutiveDays)
	assert.Equal(t, 1, res.TotalDays)

	account := env.account(t, 1)
	assert.Equal(t, int64(200), account.AvailablePoints)
	assert.Equal(t, 1, account.ConsecutiveDays)
	assert.Equal(t, 1, account.TotalLoginDays)
	assert.NotNil(t, account.LastLoginAt)

	var row models.Attendance
	require.NoError(t, env.db.Where("user_id = ?", 1).First(&row).Error)
	assert.Equal(t, "2026-03-10", row.Date)

	_, err = env.attendance.CheckIn(ctx, 1)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.Equal(t, int64(200), env.account(t, 1).AvailablePoints)

	assert.Contains(t, env.recorder.Subjects(), events.SubjectAttendanceCheckedIn)
	assert.Contains(t, env.recorder.Subjects(), events.SubjectNotificationCreated)
}

func TestCheckIn_StreakBonuses(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	ctx := context.Background()

	for day := 1; day <= 7; day++ {
		res, err := env.attendance.CheckIn(ctx, 1)
		require.NoError(t, err, "day %d", day)
		assert.Equal(t, day, res.ConsecutiveDays)
		switch day {
		case 3, 6:
			assert.Equal(t, int64(50), res.BonusPoints)
		case 7:
			assert.Equal(t, int64(500), res.BonusPoints)
		default:
			assert.Zero(t, res.BonusPoints)
		}
		env.clock.add(24 * time.Hour)
	}

	// 7 x 100 daily + 50 + 50 + 500
	assert.Equal(t, int64(100+700+600), env.account(t, 1).AvailablePoints)
	assert.Len(t, env.transactions(t, 1, models.TxConsecutiveBonus), 3)

	var streakNotes int64
	require.NoError(t, env.db.Model(&models.Notification{}).Where("type = ?", models.NotifyStreakBonus).Count(&streakNotes).Error)
	assert.Equal(t, int64(3), streakNotes)
}

func TestCheckIn_GapResetsStreak(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	ctx := context.Background()

	_, err := env.attendance.CheckIn(ctx, 1)
	require.NoError(t, err)
	env.clock.add(24 * time.Hour)
	_, err = env.attendance.CheckIn(ctx, 1)
	require.NoError(t, err)

	env.clock.add(48 * time.Hour)
	res, err := env.attendance.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ConsecutiveDays)
	assert.Equal(t, 3, res.TotalDays)
}

func TestAttendanceStatusAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 100)
	ctx := context.Background()

	status, err := env.attendance.Status(ctx, 1)
	require.NoError(t, err)
	assert.False(t, status.CheckedIn)
	assert.Zero(t, status.ConsecutiveDays)

	_, err = env.attendance.CheckIn(ctx, 1)
	require.NoError(t, err)

	status, err = env.attendance.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, status.CheckedIn)
	assert.Equal(t, 1, status.ConsecutiveDays)
	assert.Equal(t, int64(100), status.TodayPoints)

	// next day, not yet checked in: the streak is still alive
	env.clock.add(24 * time.Hour)
	status, err = env.attendance.Status(ctx, 1)
	require.NoError(t, err)
	assert.False(t, status.CheckedIn)
	assert.Equal(t, 1, status.ConsecutiveDays)

	// two days later it has lapsed
	env.clock.add(24 * time.Hour)
	status, err = env.attendance.Status(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, status.ConsecutiveDays)
	assert.Equal(t, 1, status.TotalDays)

	history, err := env.attendance.History(ctx, 1, 30)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2026-03-10", history[0].Date)

	history, err = env.attendance.History(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, history)
}
