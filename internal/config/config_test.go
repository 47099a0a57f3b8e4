package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likebank/likebank/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/likebank")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.UnitCost.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.RewardAmount.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, 10*time.Minute, cfg.AssignmentWindow)
	assert.Equal(t, 3, cfg.MaxRetries)
	// Sweep interval falls back to a quarter of the assignment window.
	assert.Equal(t, 150*time.Second, cfg.SweepInterval)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "placeholder") // register cleanup
	os.Unsetenv("DATABASE_URL")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRejectsNegativeMargin(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/likebank")
	t.Setenv("UNIT_COST", "5")
	t.Setenv("REWARD_AMOUNT", "8")

	_, err := config.Load()
	require.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/likebank")
	t.Setenv("ADMIN_IDS", "7,42")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsAdmin(42))
	assert.False(t, cfg.IsAdmin(9))
}
