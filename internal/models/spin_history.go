package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	CREDITED_BALANCE_NONE    = ""
	CREDITED_BALANCE_CREDITS = "credits"
	CREDITED_BALANCE_TOKENS  = "tokens"
)

type SpinHistory struct {
	bun.BaseModel   `bun:"table:spin_history"`
	ID              int64                  `bun:"id,pk,autoincrement" json:"id" msgpack:"id"`
	AttemptID       string                 `bun:"attempt_id,notnull" json:"attempt_id" msgpack:"attempt_id"`
	AccountID       int64                  `bun:"account_id,notnull" json:"account_id" msgpack:"account_id"`
	RewardID        int64                  `bun:"reward_id,notnull" json:"reward_id" msgpack:"reward_id"`
	RewardSnapshot  RewardSnapshot         `bun:"reward_snapshot,type:jsonb" json:"reward_snapshot" msgpack:"reward_snapshot"`
	AmountCredited  float64                `bun:"amount_credited,notnull" json:"amount_credited" msgpack:"amount_credited"`
	CreditedBalance string                 `bun:"credited_balance" json:"credited_balance" msgpack:"credited_balance"`
	IsFreeSpin      bool                   `bun:"is_free_spin,notnull" json:"is_free_spin" msgpack:"is_free_spin"`
	Details         map[string]interface{} `bun:"details,type:jsonb" json:"details" msgpack:"details"`
	IP              string                 `bun:"ip" json:"ip" msgpack:"ip"`
	UserAgent       string                 `bun:"user_agent" json:"user_agent" msgpack:"user_agent"`
	CreatedAt       time.Time              `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at" msgpack:"created_at"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type SpinHistoryPage struct {
	Data       []SpinHistory `json:"data"`
	Pagination Pagination    `json:"pagination"`
}
