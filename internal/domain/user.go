package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID              int64
	InstagramHandle string
	CoinBalance     decimal.Decimal
	Banned          bool
	CreatedAt       time.Time
}
