package worker

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/registrations"
	"github.com/muzima/registration-worker/replay"
)

func serverProvider(config DependenciesConfig, registrationsHandler *registrations.Handler, replayHandler *replay.Handler) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/status", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/v1")
	registrationsHandler.RegisterRoutes(api)
	replayHandler.RegisterRoutes(api)

	return &http.Server{
		Addr:    config.HttpAddress,
		Handler: e,
	}
}

func startServer(components Components) {
	components.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := components.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					components.Logger.Errorw("http server stopped", zap.Error(err))
					_ = components.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return components.Server.Shutdown(ctx)
		},
	})
}
