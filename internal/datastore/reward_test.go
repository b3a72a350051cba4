package datastore

import (
	"testing"

	"spinwheel/internal/models"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func TestClaimRewardQueryGuardsLimits(t *testing.T) {
	db := bun.NewDB(nil, pgdialect.New())

	query := claimRewardQuery(db, new(models.Reward), 7).String()

	for _, fragment := range []string{
		"daily_claimed = daily_claimed + 1",
		"monthly_claimed = monthly_claimed + 1",
		"id = 7",
		"is_active = TRUE",
		"(daily_limit = 0 OR daily_claimed < daily_limit)",
		"(monthly_limit = 0 OR monthly_claimed < monthly_limit)",
		"RETURNING *",
	} {
		require.Contains(t, query, fragment)
	}
}
