package redis_store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spinwheel/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const SPIN_REPLAY_TTL = 24 * time.Hour

func dbKeySpinAttempt(attemptID string) string {
	return fmt.Sprintf("spin:attempt:%s", attemptID)
}

func GetSpinAttempt(ctx context.Context, cmd redis.Cmdable, attemptID string) (*models.SpinHistory, error) {
	var v *models.SpinHistory
	b, err := cmd.Get(ctx, dbKeySpinAttempt(attemptID)).Bytes()
	if err != nil {
		return nil, err
	}

	err = msgpack.Unmarshal(b, &v)
	return v, err
}

func SetSpinAttempt(ctx context.Context, cmd redis.Cmdable, entry *models.SpinHistory) error {
	if entry.AttemptID == "" {
		return errors.New("invalid spin attempt")
	}

	b, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}

	return cmd.Set(ctx, dbKeySpinAttempt(entry.AttemptID), b, SPIN_REPLAY_TTL).Err()
}

// ReplayCache adapts the spin attempt keys to interfaces.ReplayCache. A miss is (nil, nil).
type ReplayCache struct {
	cmd redis.UniversalClient
}

func NewReplayCache(cmd redis.UniversalClient) *ReplayCache {
	return &ReplayCache{cmd}
}

func (c *ReplayCache) GetSpin(ctx context.Context, attemptID string) (*models.SpinHistory, error) {
	entry, err := GetSpinAttempt(ctx, c.cmd, attemptID)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	return entry, err
}

func (c *ReplayCache) SetSpin(ctx context.Context, entry *models.SpinHistory) error {
	return SetSpinAttempt(ctx, c.cmd, entry)
}
