package handler

import (
	"strconv"

	"spinwheel/internal/interfaces"
	"spinwheel/internal/models"
	"spinwheel/internal/services"

	"github.com/go-redis/redis_rate/v10"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLength = 128

type groupSpin struct {
	container *do.Injector
}

type spinResponse struct {
	RewardID        int64               `json:"reward_id"`
	WheelPosition   int                 `json:"wheel_position"`
	Reward          models.Reward       `json:"reward"`
	AmountCredited  float64             `json:"amount_credited"`
	CreditedBalance string              `json:"credited_balance"`
	IsFreeSpin      bool                `json:"is_free_spin"`
	Replayed        bool                `json:"replayed"`
	History         *models.SpinHistory `json:"history"`
}

func (gr *groupSpin) Spin(c echo.Context) error {
	ctx := c.Request().Context()

	account, err := ResolveValidAccount(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	attemptID := c.Request().Header.Get(HeaderIdempotencyKey)
	if len(attemptID) > maxIdempotencyKeyLength {
		return httpx.RestAbort(c, nil, errorx.Wrap(errInvalidIdempotencyKey, errorx.Validation))
	}

	limit, err := do.Invoke[interfaces.Limiter](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	serviceConfig, err := do.Invoke[*services.ServiceConfig](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	perMinute, _ := serviceConfig.GetIntConfig(ctx, services.CONFIG_SPIN_RATE_LIMIT_PER_MINUTE, services.DEFAULT_SPIN_RATE_LIMIT_PER_MINUTE)
	err = limit.Allow(ctx, services.LimitKeyUserSpin(account.ID), spinRateLimit(perMinute))
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	serviceSpin, err := do.Invoke[*services.ServiceSpin](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	result, err := serviceSpin.Spin(ctx, account.ID, services.SpinMeta{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		AttemptID: attemptID,
	})
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, spinResponse{
		RewardID:        result.Reward.ID,
		WheelPosition:   result.Reward.WheelPosition,
		Reward:          result.Reward,
		AmountCredited:  result.AmountCredited,
		CreditedBalance: result.CreditedBalance,
		IsFreeSpin:      result.IsFreeSpin,
		Replayed:        result.Replayed,
		History:         result.History,
	}, nil)
}

// spinRateLimit keeps a misconfigured value from blocking every spin or panicking redis_rate.
func spinRateLimit(perMinute int) redis_rate.Limit {
	if perMinute < 1 {
		perMinute = services.DEFAULT_SPIN_RATE_LIMIT_PER_MINUTE
	}
	return redis_rate.PerMinute(perMinute)
}

func (gr *groupSpin) History(c echo.Context) error {
	ctx := c.Request().Context()

	account, err := ResolveValidAccount(ctx, gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	serviceSpinHistory, err := do.Invoke[*services.ServiceSpinHistory](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	history, err := serviceSpinHistory.ListForAccount(ctx, account.ID, page, limit)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, history, nil)
}

func (gr *groupSpin) Rewards(c echo.Context) error {
	serviceReward, err := do.Invoke[*services.ServiceReward](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	rewards, err := serviceReward.ActiveRewards(c.Request().Context())
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, rewards, nil)
}
