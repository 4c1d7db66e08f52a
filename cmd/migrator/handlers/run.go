package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
	"github.com/lyzr/pubmigrate/common/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// RunReader reads stored migration runs
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*models.RunReport, error)
	ListRuns(ctx context.Context, community string, limit int) ([]models.RunSummary, error)
	ListRemaps(ctx context.Context, runID string, kind models.RemapKind) ([]models.RemapEntry, error)
	ListOperations(ctx context.Context, runID string) ([]models.MigrationOperation, error)
}

// RunHandler serves stored migration reports
type RunHandler struct {
	runs RunReader
	log  *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunReader, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runs: runs,
		log:  log,
	}
}

// ListRuns lists the most recent runs
// GET /api/v1/runs?community=demo&limit=20
func (h *RunHandler) ListRuns(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "limit must be a positive integer",
			})
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.runs.ListRuns(c.Request().Context(), c.QueryParam("community"), limit)
	if err != nil {
		return h.fail(c, "list runs", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun retrieves the full report of a run
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c echo.Context) error {
	report, err := h.runs.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get run", err)
	}
	return c.JSON(http.StatusOK, report)
}

// ListRemaps lists the id remap of a run
// GET /api/v1/runs/:id/remaps?kind=entity
func (h *RunHandler) ListRemaps(c echo.Context) error {
	kind := models.RemapKind(c.QueryParam("kind"))
	switch kind {
	case "", models.RemapEntityType, models.RemapStage, models.RemapField, models.RemapEntity:
	default:
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "unknown remap kind: " + string(kind),
		})
	}

	entries, err := h.runs.ListRemaps(c.Request().Context(), c.Param("id"), kind)
	if err != nil {
		return h.fail(c, "list remaps", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": c.Param("id"),
		"remaps": entries,
		"count":  len(entries),
	})
}

// ListOperations lists the operations a dry run recorded
// GET /api/v1/runs/:id/operations
func (h *RunHandler) ListOperations(c echo.Context) error {
	ops, err := h.runs.ListOperations(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "list operations", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id":     c.Param("id"),
		"operations": ops,
		"count":      len(ops),
	})
}

func (h *RunHandler) fail(c echo.Context, action string, err error) error {
	if errors.Is(err, repository.ErrRunNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "run not found",
		})
	}

	h.log.Error("failed to "+action, "run_id", c.Param("id"), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "failed to " + action,
	})
}
