package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/lyzr/pubmigrate/cmd/migrator/container"
	"github.com/lyzr/pubmigrate/cmd/migrator/handlers"
	"github.com/lyzr/pubmigrate/cmd/migrator/routes"
	"github.com/lyzr/pubmigrate/common/bootstrap"
	"github.com/lyzr/pubmigrate/common/config"
	"github.com/lyzr/pubmigrate/common/server"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored run reports over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return withCode(exitUsage, fmt.Errorf("serve needs the audit database: set POSTGRES_ENABLED=true"))
			}
			if port != 0 {
				cfg.Service.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	components, c, err := setup(ctx, cfg, bootstrap.WithoutCache())
	if err != nil {
		return err
	}
	defer components.Shutdown(context.Background())

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e)

	// Setup health check
	setupHealthCheck(e, components)

	// Register all routes
	registerRoutes(e, c)

	srv := server.New(serviceName, cfg.Service.Port, e, components.Logger)
	return srv.Start(ctx)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterRunRoutes(e, handlers.NewRunHandler(c.RunRepo, c.Components.Logger))
}
