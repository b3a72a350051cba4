package handler

import (
	"strconv"

	"spinwheel/internal/models"
	"spinwheel/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupAdminReward struct {
	container *do.Injector
}

func (gr *groupAdminReward) List(c echo.Context) error {
	serviceReward, err := do.Invoke[*services.ServiceReward](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	catalog, err := serviceReward.ListRewards(c.Request().Context())
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, catalog, nil)
}

func (gr *groupAdminReward) Create(c echo.Context) error {
	var input models.RewardInput
	if err := c.Bind(&input); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Validation))
	}

	serviceReward, err := do.Invoke[*services.ServiceReward](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	reward, err := serviceReward.CreateReward(c.Request().Context(), &input)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, reward, nil)
}

func (gr *groupAdminReward) Update(c echo.Context) error {
	rewardID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(errInvalidID, errorx.Validation))
	}

	var input models.RewardInput
	if err := c.Bind(&input); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Validation))
	}

	serviceReward, err := do.Invoke[*services.ServiceReward](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	reward, err := serviceReward.UpdateReward(c.Request().Context(), rewardID, &input)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, reward, nil)
}

func (gr *groupAdminReward) Delete(c echo.Context) error {
	rewardID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(errInvalidID, errorx.Validation))
	}

	serviceReward, err := do.Invoke[*services.ServiceReward](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	err = serviceReward.DeleteReward(c.Request().Context(), rewardID)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, nil, nil)
}
