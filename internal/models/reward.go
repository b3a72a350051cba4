package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RewardKind string

const (
	RewardKindCredits RewardKind = "CREDITS"
	RewardKindItem    RewardKind = "ITEM"
	RewardKindToken   RewardKind = "TOKEN"
	RewardKindCoupon  RewardKind = "COUPON"
	RewardKindBonus   RewardKind = "BONUS"
	RewardKindGift    RewardKind = "GIFT"
	RewardKindNothing RewardKind = "NOTHING"
)

var RewardKinds = []RewardKind{
	RewardKindCredits,
	RewardKindItem,
	RewardKindToken,
	RewardKindCoupon,
	RewardKindBonus,
	RewardKindGift,
	RewardKindNothing,
}

func (v RewardKind) String() string {
	return string(v)
}

func (v RewardKind) Valid() bool {
	for _, kind := range RewardKinds {
		if kind == v {
			return true
		}
	}
	return false
}

// IsBalance reports whether the kind carries a numeric value credited to an account balance.
func (v RewardKind) IsBalance() bool {
	return v == RewardKindCredits || v == RewardKindToken
}

type Reward struct {
	bun.BaseModel  `bun:"table:spin_reward"`
	ID             int64                  `bun:"id,pk,autoincrement" json:"id"`
	Name           string                 `bun:"name,notnull" json:"name"`
	Kind           RewardKind             `bun:"kind,notnull" json:"kind"`
	Value          float64                `bun:"value,notnull" json:"value"`
	Payload        map[string]interface{} `bun:"payload,type:jsonb" json:"payload,omitempty"`
	Weight         float64                `bun:"weight,notnull" json:"weight"`
	WheelPosition  int                    `bun:"wheel_position,notnull" json:"wheel_position"`
	DailyLimit     int                    `bun:"daily_limit,notnull" json:"daily_limit"`
	MonthlyLimit   int                    `bun:"monthly_limit,notnull" json:"monthly_limit"`
	DailyClaimed   int                    `bun:"daily_claimed,notnull" json:"daily_claimed"`
	MonthlyClaimed int                    `bun:"monthly_claimed,notnull" json:"monthly_claimed"`
	IsActive       bool                   `bun:"is_active,notnull" json:"is_active"`
	IconURL        string                 `bun:"icon_url" json:"icon_url"`
	CreatedAt      time.Time              `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time              `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// DailyExhausted is computed from the last known counters, which may be stale.
func (r *Reward) DailyExhausted() bool {
	return r.DailyLimit > 0 && r.DailyClaimed >= r.DailyLimit
}

func (r *Reward) MonthlyExhausted() bool {
	return r.MonthlyLimit > 0 && r.MonthlyClaimed >= r.MonthlyLimit
}

// Selectable filters the candidate pool before a pick. The claim step re-checks the caps atomically.
func (r *Reward) Selectable() bool {
	return r.IsActive && r.Weight > 0 && !r.DailyExhausted() && !r.MonthlyExhausted()
}

func (r *Reward) Snapshot() RewardSnapshot {
	payload := make(map[string]interface{}, len(r.Payload))
	for k, v := range r.Payload {
		payload[k] = v
	}

	return RewardSnapshot{
		ID:             r.ID,
		Name:           r.Name,
		Kind:           r.Kind,
		Value:          r.Value,
		Payload:        payload,
		Weight:         r.Weight,
		WheelPosition:  r.WheelPosition,
		DailyLimit:     r.DailyLimit,
		MonthlyLimit:   r.MonthlyLimit,
		DailyClaimed:   r.DailyClaimed,
		MonthlyClaimed: r.MonthlyClaimed,
		IconURL:        r.IconURL,
	}
}

// RewardSnapshot is the reward as granted, frozen into spin history.
type RewardSnapshot struct {
	ID             int64                  `json:"id" msgpack:"id"`
	Name           string                 `json:"name" msgpack:"name"`
	Kind           RewardKind             `json:"kind" msgpack:"kind"`
	Value          float64                `json:"value" msgpack:"value"`
	Payload        map[string]interface{} `json:"payload,omitempty" msgpack:"payload,omitempty"`
	Weight         float64                `json:"weight" msgpack:"weight"`
	WheelPosition  int                    `json:"wheel_position" msgpack:"wheel_position"`
	DailyLimit     int                    `json:"daily_limit" msgpack:"daily_limit"`
	MonthlyLimit   int                    `json:"monthly_limit" msgpack:"monthly_limit"`
	DailyClaimed   int                    `json:"daily_claimed" msgpack:"daily_claimed"`
	MonthlyClaimed int                    `json:"monthly_claimed" msgpack:"monthly_claimed"`
	IconURL        string                 `json:"icon_url" msgpack:"icon_url"`
}

func (s RewardSnapshot) ToReward() Reward {
	return Reward{
		ID:             s.ID,
		Name:           s.Name,
		Kind:           s.Kind,
		Value:          s.Value,
		Payload:        s.Payload,
		Weight:         s.Weight,
		WheelPosition:  s.WheelPosition,
		DailyLimit:     s.DailyLimit,
		MonthlyLimit:   s.MonthlyLimit,
		DailyClaimed:   s.DailyClaimed,
		MonthlyClaimed: s.MonthlyClaimed,
		IsActive:       true,
		IconURL:        s.IconURL,
	}
}

// RewardInput is the admin payload for creating or updating a reward. Nil fields are left untouched on update.
type RewardInput struct {
	Name          *string                `json:"name"`
	Kind          *RewardKind            `json:"kind"`
	Value         *float64               `json:"value"`
	Payload       map[string]interface{} `json:"payload"`
	Weight        *float64               `json:"weight"`
	WheelPosition *int                   `json:"wheel_position"`
	DailyLimit    *int                   `json:"daily_limit"`
	MonthlyLimit  *int                   `json:"monthly_limit"`
	IsActive      *bool                  `json:"is_active"`
	IconURL       *string                `json:"icon_url"`
}
