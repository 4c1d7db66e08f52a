package service

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/lyzr/pubmigrate/common/models"
)

// Verifier reads a created entity back and reports values that differ from
// what was sent, as a JSON merge patch from stored to intended
type Verifier struct {
	reader EntityReader
}

// NewVerifier creates a verifier over reader
func NewVerifier(reader EntityReader) *Verifier {
	return &Verifier{reader: reader}
}

// Verify returns an empty string when the stored values match the draft
func (v *Verifier) Verify(ctx context.Context, id string, draft models.EntityDraft) (string, error) {
	stored, err := v.reader.GetEntity(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to read back entity %s: %w", id, err)
	}

	// Only the keys we wrote are compared; the store may add its own
	relevant := make(map[string]any, len(draft.Values))
	for k := range draft.Values {
		if val, ok := stored.Values[k]; ok {
			relevant[k] = val
		}
	}

	storedJSON, err := json.Marshal(relevant)
	if err != nil {
		return "", fmt.Errorf("failed to encode stored values: %w", err)
	}
	intendedJSON, err := json.Marshal(draft.Values)
	if err != nil {
		return "", fmt.Errorf("failed to encode intended values: %w", err)
	}

	patch, err := jsonpatch.CreateMergePatch(storedJSON, intendedJSON)
	if err != nil {
		return "", fmt.Errorf("failed to diff entity %s: %w", id, err)
	}
	if string(patch) == "{}" {
		return "", nil
	}
	return string(patch), nil
}
