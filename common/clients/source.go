package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lyzr/pubmigrate/common/models"
	"github.com/lyzr/pubmigrate/common/ratelimit"
)

const sourcePageSize = 100

// SourceClient reads schema and records from a tabular base API
type SourceClient struct {
	baseURL string
	baseID  string
	http    *HTTPClient
	logger  Logger
}

// NewSourceClient creates a client for one base
func NewSourceClient(baseURL, baseID, apiKey string, timeout time.Duration, logger Logger) *SourceClient {
	return &SourceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		baseID:  baseID,
		http:    NewHTTPClient(&http.Client{Timeout: timeout}, logger, BearerHeaders(apiKey)),
		logger:  logger,
	}
}

// SetLimiter throttles every call of the client
func (c *SourceClient) SetLimiter(l ratelimit.Limiter) {
	c.http.SetLimiter(l)
}

// ListTables fetches every table of the base with its fields in declaration order
func (c *SourceClient) ListTables(ctx context.Context) ([]models.TableDescriptor, error) {
	u := fmt.Sprintf("%s/meta/bases/%s/tables", c.baseURL, url.PathEscape(c.baseID))
	raw, err := c.http.DoJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tables: %w", err)
	}

	var resp struct {
		Tables []models.TableDescriptor `json:"tables"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode tables response: %w", err)
	}

	c.logger.Info("fetched source tables", "base_id", c.baseID, "count", len(resp.Tables))
	return resp.Tables, nil
}

// ListFields returns the fields of one table, looked up by name or id
func (c *SourceClient) ListFields(ctx context.Context, table string) ([]models.FieldDescriptor, error) {
	tables, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Name == table || t.ID == table {
			return t.Fields, nil
		}
	}
	return nil, fmt.Errorf("table %q not found in base %s", table, c.baseID)
}

// ListRecords fetches up to limit records of a table, following page offsets.
// A non-positive limit reads every page. Values are keyed by field id.
func (c *SourceClient) ListRecords(ctx context.Context, table models.TableDescriptor, limit int) ([]models.SourceRecord, error) {
	records := make([]models.SourceRecord, 0)
	offset := ""

	for {
		pageSize := sourcePageSize
		if limit > 0 {
			pageSize = min(pageSize, limit-len(records))
		}

		q := url.Values{}
		q.Set("returnFieldsByFieldId", "true")
		q.Set("pageSize", strconv.Itoa(pageSize))
		if offset != "" {
			q.Set("offset", offset)
		}

		u := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table.ID), q.Encode())
		raw, err := c.http.DoJSON(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch records of %s: %w", table.Name, err)
		}

		var page struct {
			Records []models.SourceRecord `json:"records"`
			Offset  string                `json:"offset"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("failed to decode records of %s: %w", table.Name, err)
		}

		records = append(records, page.Records...)
		if page.Offset == "" || (limit > 0 && len(records) >= limit) {
			break
		}
		offset = page.Offset
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	c.logger.Info("fetched source records", "table", table.Name, "count", len(records))
	return records, nil
}
