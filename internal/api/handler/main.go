package handler

import (
	"net/http"

	"spinwheel/internal/models"
	"spinwheel/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/do"
)

type Config struct {
	Container *do.Injector
	Mode      string
	Origins   []string
}

func New(cfg *Config) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	if cfg.Mode == "debug" {
		r.Debug = true
		pprof.Register(r)
	}

	r.JSONSerializer = httpx.SegmentJSONSerializer{}
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())

	r.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "🎡")
	})

	routesAPIv1 := r.Group("/api/v1")
	{
		authentication, err := do.Invoke[*services.Authentication](cfg.Container)
		if err != nil {
			return nil, err
		}
		cors := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.Origins,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, HeaderIdempotencyKey},
			AllowCredentials: true,
			MaxAge:           60 * 60,
		})

		routesAPIv1.Use(cors)
		routesAPIv1.Use(Authn(authentication)) // Authn will NOT terminate unauthenticated request.
		routesAPIv1.GET("", Hello)

		au := groupAuth{cfg.Container}
		routesAPIv1.POST("/auth/telegram", au.Telegram)

		a := groupAccount{cfg.Container}
		routesAPIv1.GET("/account/me", a.Me)

		s := groupSpin{cfg.Container}
		routesAPIv1.POST("/spin", s.Spin)
		routesAPIv1.GET("/spin/history", s.History)
		routesAPIv1.GET("/spin/rewards", s.Rewards)

		routesAPIv1Admin := routesAPIv1.Group("/admin")
		routesAPIv1Admin.Use(RequireRole(models.ROLE_ADMIN))
		{
			ar := groupAdminReward{cfg.Container}
			routesAPIv1Admin.GET("/spin-rewards", ar.List)
			routesAPIv1Admin.POST("/spin-rewards", ar.Create)
			routesAPIv1Admin.PUT("/spin-rewards/:id", ar.Update)
			routesAPIv1Admin.DELETE("/spin-rewards/:id", ar.Delete)

			routesAPIv1Admin.POST("/accounts/:id/spins", a.GrantSpins)
		}
	}

	return r, nil
}

func Hello(c echo.Context) error {
	return httpx.RestAbort(c, "hello world", nil)
}
