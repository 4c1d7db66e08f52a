package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/pubmigrate/cmd/migrator/handlers"
)

// RegisterRunRoutes registers the read-only run report routes
func RegisterRunRoutes(e *echo.Echo, h *handlers.RunHandler) {
	runs := e.Group("/api/v1/runs")
	{
		runs.GET("", h.ListRuns)                      // GET /api/v1/runs?community=demo
		runs.GET("/:id", h.GetRun)                    // GET /api/v1/runs/{run_id}
		runs.GET("/:id/remaps", h.ListRemaps)         // GET /api/v1/runs/{run_id}/remaps?kind=entity
		runs.GET("/:id/operations", h.ListOperations) // GET /api/v1/runs/{run_id}/operations
	}
}
