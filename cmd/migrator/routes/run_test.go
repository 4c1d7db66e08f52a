package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/pubmigrate/cmd/migrator/handlers"
	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
	"github.com/lyzr/pubmigrate/common/repository"
)

const knownRun = "5b1f0c9e-7a43-4c1e-9a55-0c3b8f1d2e10"

type fakeRuns struct {
	lastLimit int
	lastKind  models.RemapKind
	fail      bool
}

func (f *fakeRuns) GetRun(ctx context.Context, runID string) (*models.RunReport, error) {
	if f.fail {
		return nil, errors.New("connection reset")
	}
	if runID != knownRun {
		return nil, repository.ErrRunNotFound
	}
	return &models.RunReport{RunID: runID, Community: "demo"}, nil
}

func (f *fakeRuns) ListRuns(ctx context.Context, community string, limit int) ([]models.RunSummary, error) {
	f.lastLimit = limit
	return []models.RunSummary{{RunID: knownRun, Community: "demo", Created: 3}}, nil
}

func (f *fakeRuns) ListRemaps(ctx context.Context, runID string, kind models.RemapKind) ([]models.RemapEntry, error) {
	f.lastKind = kind
	return []models.RemapEntry{{Kind: models.RemapEntity, SourceID: "rec1", TargetID: "pub1"}}, nil
}

func (f *fakeRuns) ListOperations(ctx context.Context, runID string) ([]models.MigrationOperation, error) {
	return []models.MigrationOperation{{Kind: models.OpCreateEntity, Method: http.MethodPost, Endpoint: "/site/pubs"}}, nil
}

func newTestServer(runs *fakeRuns) *echo.Echo {
	e := echo.New()
	RegisterRunRoutes(e, handlers.NewRunHandler(runs, logger.Discard()))
	return e
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRunRoutes(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		fail       bool
		wantStatus int
		wantBody   string
	}{
		{name: "list", target: "/api/v1/runs", wantStatus: http.StatusOK, wantBody: `"count":1`},
		{name: "bad limit", target: "/api/v1/runs?limit=zero", wantStatus: http.StatusBadRequest},
		{name: "get", target: "/api/v1/runs/" + knownRun, wantStatus: http.StatusOK, wantBody: `"community":"demo"`},
		{name: "missing", target: "/api/v1/runs/00000000-0000-0000-0000-000000000000", wantStatus: http.StatusNotFound},
		{name: "store error", target: "/api/v1/runs/" + knownRun, fail: true, wantStatus: http.StatusInternalServerError},
		{name: "remaps", target: "/api/v1/runs/" + knownRun + "/remaps?kind=entity", wantStatus: http.StatusOK, wantBody: `"targetId":"pub1"`},
		{name: "bad remap kind", target: "/api/v1/runs/" + knownRun + "/remaps?kind=widget", wantStatus: http.StatusBadRequest},
		{name: "operations", target: "/api/v1/runs/" + knownRun + "/operations", wantStatus: http.StatusOK, wantBody: `"operation":"create_entity"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestServer(&fakeRuns{fail: tt.fail}), tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestListRunsCapsLimit(t *testing.T) {
	runs := &fakeRuns{}
	rec := get(newTestServer(runs), "/api/v1/runs?limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200, runs.lastLimit)

	var body struct {
		Runs []models.RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Runs[0].Created)
}

func TestListRemapsPassesKind(t *testing.T) {
	runs := &fakeRuns{}
	get(newTestServer(runs), "/api/v1/runs/"+knownRun+"/remaps?kind=stage")
	assert.Equal(t, models.RemapStage, runs.lastKind)
}
