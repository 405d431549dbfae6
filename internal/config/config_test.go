package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmailList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "admin@ppplay.com", []string{"admin@ppplay.com"}},
		{"trim and lower", " Admin@PPPlay.com , ops@ppplay.com ", []string{"admin@ppplay.com", "ops@ppplay.com"}},
		{"skip blanks", "a@x.io,,b@x.io,", []string{"a@x.io", "b@x.io"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEmailList(tt.raw))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ADMIN_EMAILS", "root@ppplay.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1000), cfg.Points.MarketCreationFee)
	assert.Equal(t, int64(100), cfg.Points.CreatorBonus)
	assert.Equal(t, int64(5), cfg.Points.ParticipationReward)
	assert.Equal(t, int64(20), cfg.Points.AccuracyReward)
	assert.Equal(t, 10, cfg.Points.DailyVoteLimit)
	assert.Equal(t, 3, cfg.RateLimit.MarketCreateLimit)
	assert.Equal(t, []string{"root@ppplay.com"}, cfg.Auth.AdminEmails)
	require.NotNil(t, cfg.App.Location)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("RATE_LIMIT_STORE", "redis")

	_, err := Load()
	assert.ErrorContains(t, err, "RATE_LIMIT_STORE")
}
