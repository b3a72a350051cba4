package handler

import (
	"context"
	"errors"
	"strings"

	"spinwheel/internal/models"
	"spinwheel/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type ctxKey string

var ctxKeyAuthAccount ctxKey = "AUTH_ACCOUNT"

func Authn(verifier interface {
	Validate(token string) (*models.AccountFromAuth, error)
},
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}

			parts := strings.Split(header, "Bearer")
			if len(parts) != 2 {
				return next(c)
			}

			token := strings.TrimSpace(parts[1])
			if len(token) == 0 {
				return next(c)
			}

			account, err := verifier.Validate(token)
			if err != nil {
				// although it's a client error, we don't want to detailed information
				//nolint:errcheck
				httpx.Abort(c, errorx.Wrap(errors.New("invalid access token"), errorx.Authn), -1)
				return nil
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, ctxKeyAuthAccount, account)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole terminates requests whose token does not carry one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountAuth, ok := c.Request().Context().Value(ctxKeyAuthAccount).(*models.AccountFromAuth)
			if !ok {
				//nolint:errcheck
				httpx.Abort(c, errorx.Wrap(errors.New("missing session"), errorx.Authn), -1)
				return nil
			}

			for _, role := range roles {
				if accountAuth.Role == role {
					return next(c)
				}
			}

			//nolint:errcheck
			httpx.Abort(c, errorx.Wrap(errors.New("permission denied"), errorx.Authz), -1)
			return nil
		}
	}
}

func ResolveValidAccount(ctx context.Context, container *do.Injector) (*models.Account, error) {
	accountAuth, ok := ctx.Value(ctxKeyAuthAccount).(*models.AccountFromAuth)
	if !ok {
		return nil, errorx.Wrap(errors.New("missing session"), errorx.Authn)
	}

	serviceAccount, err := do.Invoke[*services.ServiceAccount](container)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	account, err := serviceAccount.FindOrCreateAccount(ctx, accountAuth)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	return account, nil
}
