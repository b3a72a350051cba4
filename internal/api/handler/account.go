package handler

import (
	"strconv"

	"spinwheel/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupAccount struct {
	container *do.Injector
}

type grantSpinsRequest struct {
	Spins int `json:"spins"`
}

func (gr *groupAccount) Me(c echo.Context) error {
	account, err := ResolveValidAccount(c.Request().Context(), gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, account, nil)
}

func (gr *groupAccount) GrantSpins(c echo.Context) error {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(errInvalidID, errorx.Validation))
	}

	var req grantSpinsRequest
	if err := c.Bind(&req); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Validation))
	}

	serviceAccount, err := do.Invoke[*services.ServiceAccount](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	account, err := serviceAccount.GrantSpins(c.Request().Context(), accountID, req.Spins)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, account, nil)
}
