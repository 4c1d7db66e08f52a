package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lyzr/pubmigrate/common/models"
	"github.com/lyzr/pubmigrate/common/ratelimit"
)

const defaultStageColor = "#000000"

// TargetClient talks to the entity site API of one community
type TargetClient struct {
	routes Routes
	http   *HTTPClient
	logger Logger
}

// NewTargetClient creates a client for the community at communityURL
func NewTargetClient(communityURL, apiKey string, timeout time.Duration, logger Logger) *TargetClient {
	return &TargetClient{
		routes: NewRoutes(communityURL),
		http:   NewHTTPClient(&http.Client{Timeout: timeout}, logger, BearerHeaders(apiKey)),
		logger: logger,
	}
}

// SetLimiter throttles every call of the client
func (c *TargetClient) SetLimiter(l ratelimit.Limiter) {
	c.http.SetLimiter(l)
}

// Routes exposes the endpoint table
func (c *TargetClient) Routes() Routes {
	return c.routes
}

type stageWire struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Color           string `json:"color"`
	MoveConstraints []struct {
		ID string `json:"id"`
	} `json:"moveConstraints"`
}

// TypePayload is the create-type request body
func TypePayload(t models.EntityType) map[string]any {
	return map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"icon":        t.Icon,
	}
}

// StagePayload is the create-stage request body
func StagePayload(s models.Stage) map[string]any {
	color := s.Color
	if color == "" {
		color = defaultStageColor
	}
	return map[string]any{
		"name":        s.Name,
		"description": s.Description,
		"color":       color,
	}
}

// FieldPayload is the create-field request body. EntityTypeID must already
// be a target id.
func FieldPayload(f models.FieldDef) map[string]any {
	fieldType := f.Type
	if fieldType == "" {
		fieldType = "string"
	}
	p := map[string]any{
		"name":        f.Name,
		"description": f.Description,
		"required":    f.Required,
		"type":        fieldType,
	}
	if f.EntityTypeID != "" {
		p["pubType"] = f.EntityTypeID
	}
	if f.HasOptions() {
		options := f.Options
		if options == nil {
			options = []string{}
		}
		p["options"] = options
	}
	return p
}

// MoveConstraintsPayload is the set-move-constraints request body
func MoveConstraintsPayload(targetStageIDs []string) []map[string]string {
	out := make([]map[string]string, 0, len(targetStageIDs))
	for _, id := range targetStageIDs {
		out = append(out, map[string]string{"id": id})
	}
	return out
}

// RelationsPayload is the update-relations request body
func RelationsPayload(relations map[string][]string) map[string][]map[string]string {
	out := make(map[string][]map[string]string, len(relations))
	for slug, ids := range relations {
		entries := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			entries = append(entries, map[string]string{"relatedPubId": id})
		}
		out[slug] = entries
	}
	return out
}

// ListTypes fetches every entity type
func (c *TargetClient) ListTypes(ctx context.Context) ([]models.EntityType, error) {
	var types []models.EntityType
	if err := c.getList(ctx, c.routes.Types(), &types); err != nil {
		return nil, fmt.Errorf("failed to list types: %w", err)
	}
	return types, nil
}

// ListStages fetches every stage with its move constraints
func (c *TargetClient) ListStages(ctx context.Context) ([]models.Stage, error) {
	var wire []stageWire
	if err := c.getList(ctx, c.routes.Stages(), &wire); err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}

	stages := make([]models.Stage, 0, len(wire))
	for _, w := range wire {
		s := models.Stage{ID: w.ID, Name: w.Name, Description: w.Description, Color: w.Color}
		for _, mc := range w.MoveConstraints {
			s.MoveConstraints = append(s.MoveConstraints, mc.ID)
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// ListFields fetches every field definition
func (c *TargetClient) ListFields(ctx context.Context) ([]models.FieldDef, error) {
	var fields []models.FieldDef
	if err := c.getList(ctx, c.routes.Fields(), &fields); err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	return fields, nil
}

// CreateType creates an entity type and returns its id
func (c *TargetClient) CreateType(ctx context.Context, t models.EntityType) (string, error) {
	return c.create(ctx, c.routes.Types(), TypePayload(t))
}

// CreateStage creates a stage and returns its id
func (c *TargetClient) CreateStage(ctx context.Context, s models.Stage) (string, error) {
	return c.create(ctx, c.routes.Stages(), StagePayload(s))
}

// CreateField creates a field and returns its id
func (c *TargetClient) CreateField(ctx context.Context, f models.FieldDef) (string, error) {
	return c.create(ctx, c.routes.Fields(), FieldPayload(f))
}

// SetMoveConstraints replaces the allowed transitions of a stage
func (c *TargetClient) SetMoveConstraints(ctx context.Context, stageID string, targetStageIDs []string) error {
	_, err := c.http.DoJSON(ctx, http.MethodPut, c.routes.MoveConstraints(stageID), MoveConstraintsPayload(targetStageIDs))
	if err != nil {
		return fmt.Errorf("failed to set move constraints of stage %s: %w", stageID, err)
	}
	return nil
}

// CreateEntity creates an entity and returns its id
func (c *TargetClient) CreateEntity(ctx context.Context, draft models.EntityDraft) (string, error) {
	return c.create(ctx, c.routes.Pubs(), draft)
}

// UpdateRelations sets the relation fields of an entity
func (c *TargetClient) UpdateRelations(ctx context.Context, entityID string, relations map[string][]string) error {
	_, err := c.http.DoJSON(ctx, http.MethodPatch, c.routes.Relations(entityID), RelationsPayload(relations))
	if err != nil {
		return fmt.Errorf("failed to update relations of %s: %w", entityID, err)
	}
	return nil
}

// GetEntity reads an entity back. Values are returned keyed by field slug
// whether the API answers with an object or a list of {fieldSlug, value}.
func (c *TargetClient) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	raw, err := c.http.DoJSON(ctx, http.MethodGet, c.routes.Pub(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", id, err)
	}

	doc := gjson.ParseBytes(raw)
	entity := &models.Entity{
		ID:      doc.Get("id").String(),
		TypeID:  doc.Get("pubTypeId").String(),
		StageID: doc.Get("stageId").String(),
		Title:   doc.Get("title").String(),
		Slug:    doc.Get("slug").String(),
		Values:  make(map[string]any),
	}

	values := doc.Get("values")
	switch {
	case values.IsArray():
		values.ForEach(func(_, v gjson.Result) bool {
			if slug := v.Get("fieldSlug").String(); slug != "" {
				entity.Values[slug] = v.Get("value").Value()
			}
			return true
		})
	case values.IsObject():
		values.ForEach(func(k, v gjson.Result) bool {
			entity.Values[k.String()] = v.Value()
			return true
		})
	}
	return entity, nil
}

func (c *TargetClient) getList(ctx context.Context, url string, out any) error {
	raw, err := c.http.DoJSON(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

func (c *TargetClient) create(ctx context.Context, url string, payload any) (string, error) {
	raw, err := c.http.DoJSON(ctx, http.MethodPost, url, payload)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(raw, "id").String()
	if id == "" {
		return "", fmt.Errorf("create at %s returned no id", url)
	}
	c.logger.Debug("created", "url", url, "id", id)
	return id, nil
}
