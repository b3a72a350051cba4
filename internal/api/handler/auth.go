package handler

import (
	"errors"

	"spinwheel/internal/models"
	"spinwheel/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupAuth struct {
	container *do.Injector
}

type telegramLoginRequest struct {
	InitData string `json:"init_data"`
}

type loginResponse struct {
	AccessToken string                  `json:"access_token"`
	Account     *models.AccountFromAuth `json:"account"`
}

func (gr *groupAuth) Telegram(c echo.Context) error {
	var req telegramLoginRequest
	if err := c.Bind(&req); err != nil || req.InitData == "" {
		return httpx.RestAbort(c, nil, errorx.Wrap(errors.New("missing init data"), errorx.Validation))
	}

	login, err := do.Invoke[*services.TelegramLogin](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	token, account, err := login.Exchange(req.InitData)
	if err != nil {
		// although it's a client error, we don't want to detailed information
		return httpx.RestAbort(c, nil, errorx.Wrap(errors.New("invalid init data"), errorx.Authn))
	}

	return httpx.RestAbort(c, loginResponse{token, account}, nil)
}
