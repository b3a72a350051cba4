package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Account is the spin-relevant projection of a user record. Profile and auth fields belong to the account service.
type Account struct {
	bun.BaseModel           `bun:"table:account"`
	ID                      int64      `bun:"id,pk,autoincrement" json:"id"`
	Username                string     `bun:"username" json:"username"`
	CreditsBalance          float64    `bun:"credits_balance,notnull" json:"credits_balance"`
	TokenBalance            float64    `bun:"token_balance,notnull" json:"token_balance"`
	SpinsUsedToday          int        `bun:"spins_used_today,notnull" json:"spins_used_today"`
	LastSpinDate            *time.Time `bun:"last_spin_date" json:"last_spin_date"`
	PurchasedSpinsAvailable int        `bun:"purchased_spins_available,notnull" json:"purchased_spins_available"`
	TotalSpinPurchases      int        `bun:"total_spin_purchases,notnull" json:"total_spin_purchases"`
	CreatedAt               time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt               time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// AccountFromAuth only use in middleware
type AccountFromAuth struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

const (
	ROLE_USER  = "USER"
	ROLE_ADMIN = "ADMIN"
)
