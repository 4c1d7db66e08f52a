package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/pubmigrate/common/logger"
	"github.com/lyzr/pubmigrate/common/models"
)

func newTargetServer(t *testing.T, register func(e *echo.Echo)) *TargetClient {
	t.Helper()
	e := echo.New()
	register(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return NewTargetClient(srv.URL+"/c/demo", "token", 5*time.Second, logger.Discard())
}

func TestTargetClientListStagesFlattensConstraints(t *testing.T) {
	client := newTargetServer(t, func(e *echo.Echo) {
		e.GET("/c/demo/site/stages", func(c echo.Context) error {
			assert.Equal(t, "Bearer token", c.Request().Header.Get("Authorization"))
			return c.JSONBlob(http.StatusOK, []byte(`[
				{"id":"s1","name":"Submitted","moveConstraints":[{"id":"s2"}]},
				{"id":"s2","name":"Published"}
			]`))
		})
	})

	stages, err := client.ListStages(context.Background())
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, []string{"s2"}, stages[0].MoveConstraints)
	assert.Empty(t, stages[1].MoveConstraints)
}

func TestTargetClientCreateStageDefaultsColor(t *testing.T) {
	var got map[string]any
	client := newTargetServer(t, func(e *echo.Echo) {
		e.POST("/c/demo/site/stages", func(c echo.Context) error {
			body, _ := io.ReadAll(c.Request().Body)
			require.NoError(t, json.Unmarshal(body, &got))
			return c.JSON(http.StatusOK, map[string]string{"id": "new-stage"})
		})
	})

	id, err := client.CreateStage(context.Background(), models.Stage{Name: "Review"})
	require.NoError(t, err)
	assert.Equal(t, "new-stage", id)
	assert.Equal(t, "#000000", got["color"])
	assert.Equal(t, "Review", got["name"])
}

func TestTargetClientRunIDHeader(t *testing.T) {
	client := newTargetServer(t, func(e *echo.Echo) {
		e.POST("/c/demo/site/pubs", func(c echo.Context) error {
			assert.Equal(t, "run-1", c.Request().Header.Get("X-Migration-Run"))
			assert.NotEmpty(t, c.Request().Header.Get("X-Request-ID"))
			return c.JSON(http.StatusCreated, map[string]string{"id": "pub-1"})
		})
	})

	ctx := WithRunID(context.Background(), "run-1")
	id, err := client.CreateEntity(ctx, models.EntityDraft{TypeID: "t", Title: "x", Slug: "x"})
	require.NoError(t, err)
	assert.Equal(t, "pub-1", id)
}

func TestTargetClientAPIErrorMessage(t *testing.T) {
	client := newTargetServer(t, func(e *echo.Echo) {
		e.POST("/c/demo/site/pub-types", func(c echo.Context) error {
			return c.JSONBlob(http.StatusBadRequest, []byte(`{"error":{"message":"name taken"}}`))
		})
		e.GET("/c/demo/site/pubs/:id", func(c echo.Context) error {
			return c.JSONBlob(http.StatusNotFound, []byte(`{"message":"no such pub"}`))
		})
	})

	_, err := client.CreateType(context.Background(), models.EntityType{Name: "Preprint"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "name taken", apiErr.Message)

	_, err = client.GetEntity(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestTargetClientGetEntityValueShapes(t *testing.T) {
	client := newTargetServer(t, func(e *echo.Echo) {
		e.GET("/c/demo/site/pubs/obj", func(c echo.Context) error {
			return c.JSONBlob(http.StatusOK, []byte(`{"id":"obj","title":"T","values":{"demo:title":"T"}}`))
		})
		e.GET("/c/demo/site/pubs/list", func(c echo.Context) error {
			return c.JSONBlob(http.StatusOK, []byte(`{"id":"list","values":[{"fieldSlug":"demo:title","value":"T"}]}`))
		})
	})

	for _, id := range []string{"obj", "list"} {
		entity, err := client.GetEntity(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, entity.ID)
		assert.Equal(t, map[string]any{"demo:title": "T"}, entity.Values)
	}
}

func TestPayloadBuilders(t *testing.T) {
	p := FieldPayload(models.FieldDef{Name: "Status", Type: "select", EntityTypeID: "t1"})
	assert.Equal(t, "t1", p["pubType"])
	assert.Equal(t, []string{}, p["options"])

	p = FieldPayload(models.FieldDef{Name: "Notes"})
	assert.Equal(t, "string", p["type"])
	assert.NotContains(t, p, "pubType")
	assert.NotContains(t, p, "options")

	rel := RelationsPayload(map[string][]string{"demo:related": {"a", "b"}})
	assert.Equal(t, []map[string]string{{"relatedPubId": "a"}, {"relatedPubId": "b"}}, rel["demo:related"])

	assert.Equal(t, []map[string]string{{"id": "x"}}, MoveConstraintsPayload([]string{"x"}))
}

func TestRoutes(t *testing.T) {
	r := NewRoutes("https://example.org/api/v0/c/demo/")
	assert.Equal(t, "https://example.org/api/v0/c/demo/site/pub-types", r.Types())
	assert.Equal(t, "https://example.org/api/v0/c/demo/site/stages/s1/move-constraints", r.MoveConstraints("s1"))
	assert.Equal(t, "https://example.org/api/v0/c/demo/site/pubs/p1/relations", r.Relations("p1"))
}
