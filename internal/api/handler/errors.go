package handler

import (
	"errors"

	"spinwheel/internal/pkg/limiter"
	"spinwheel/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
)

var errInvalidIdempotencyKey = errors.New("idempotency key too long")
var errInvalidID = errors.New("invalid id")

// wrapServiceError tags service errors with the kind the response layer renders. Unknown errors are service errors.
func wrapServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrNoRewardsAvailable),
		errors.Is(err, services.ErrRewardNotFound):
		return errorx.Wrap(err, errorx.NotExist)
	case errors.Is(err, services.ErrInsufficientSpins),
		errors.Is(err, services.ErrInvalidReward),
		errors.Is(err, services.ErrMaxRewardsReached),
		errors.Is(err, services.ErrInvalidSpinGrant):
		return errorx.Wrap(err, errorx.Validation)
	case errors.Is(err, services.ErrAttemptMismatch),
		errors.Is(err, services.ErrSpinLocked):
		return errorx.Wrap(err, errorx.Invalid)
	case errors.Is(err, limiter.ErrRateLimited):
		return errorx.Wrap(err, errorx.RateLimiting)
	case errors.Is(err, services.ErrStorageConflict):
		return errorx.Wrap(services.ErrStorageConflict, errorx.Service)
	}

	return errorx.Wrap(err, errorx.Service)
}
