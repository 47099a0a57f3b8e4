package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`

	// Order economics
	UnitCost     decimal.Decimal `env:"UNIT_COST" envDefault:"10"`
	RewardAmount decimal.Decimal `env:"REWARD_AMOUNT" envDefault:"8"`

	// Task dispatch
	AssignmentWindow     time.Duration `env:"ASSIGNMENT_WINDOW" envDefault:"10m"`
	MaxRetries           int           `env:"MAX_RETRIES" envDefault:"3"`
	MaxCandidatesPerTake int           `env:"MAX_CANDIDATES_PER_TAKE" envDefault:"20"`

	// Sweeper
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"0"`

	// Instagram web client
	InstagramBaseURL   string        `env:"INSTAGRAM_BASE_URL" envDefault:"https://www.instagram.com"`
	InstagramSessionID string        `env:"INSTAGRAM_SESSION_ID"`
	InstagramTimeout   time.Duration `env:"INSTAGRAM_TIMEOUT" envDefault:"30s"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// API rate limit (requests per user per minute)
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.UnitCost.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("UNIT_COST must be positive, got %s", cfg.UnitCost)
	}
	if cfg.RewardAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("REWARD_AMOUNT must be positive, got %s", cfg.RewardAmount)
	}
	// Platform margin must be non-negative.
	if cfg.UnitCost.LessThan(cfg.RewardAmount) {
		return nil, fmt.Errorf("UNIT_COST (%s) must be >= REWARD_AMOUNT (%s)", cfg.UnitCost, cfg.RewardAmount)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.AssignmentWindow / 4
	}
	return cfg, nil
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
