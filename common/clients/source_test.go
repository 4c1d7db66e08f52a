package clients

import (
	"context"
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

func TestSourceClientListTables(t *testing.T) {
	e := echo.New()
	e.GET("/v0/meta/bases/app1/tables", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"tables":[
			{"id":"tbl1","name":"Preprints","fields":[
				{"id":"fld1","name":"Title","type":"singleLineText"},
				{"id":"fld2","name":"Related","type":"multipleRecordLinks"}
			]}
		]}`))
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := NewSourceClient(srv.URL+"/v0", "app1", "key", 5*time.Second, logger.Discard())
	tables, err := client.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "Preprints", tables[0].Name)
	assert.Equal(t, models.FieldLink, tables[0].Fields[1].Type)
}

func TestSourceClientListRecordsPaginates(t *testing.T) {
	e := echo.New()
	e.GET("/v0/app1/tbl1", func(c echo.Context) error {
		assert.Equal(t, "true", c.QueryParam("returnFieldsByFieldId"))
		if c.QueryParam("offset") == "" {
			return c.JSONBlob(http.StatusOK, []byte(`{"records":[{"id":"rec1","fields":{"fld1":"A"}}],"offset":"next"}`))
		}
		return c.JSONBlob(http.StatusOK, []byte(`{"records":[{"id":"rec2","fields":{"fld1":"B"}},{"id":"rec3","fields":{}}]}`))
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := NewSourceClient(srv.URL+"/v0", "app1", "key", 5*time.Second, logger.Discard())
	records, err := client.ListRecords(context.Background(), models.TableDescriptor{ID: "tbl1", Name: "Preprints"}, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "B", records[1].Values["fld1"])
}

func TestSourceClientSchemaError(t *testing.T) {
	e := echo.New()
	e.GET("/v0/meta/bases/app1/tables", func(c echo.Context) error {
		return c.JSONBlob(http.StatusUnauthorized, []byte(`{"error":"AUTHENTICATION_REQUIRED"}`))
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := NewSourceClient(srv.URL+"/v0", "app1", "", 5*time.Second, logger.Discard())
	_, err := client.ListTables(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTHENTICATION_REQUIRED")
}

func TestSourceClientListFields(t *testing.T) {
	e := echo.New()
	e.GET("/v0/meta/bases/app1/tables", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"tables":[
			{"id":"tbl1","name":"Preprints","fields":[{"id":"fld1","name":"Title","type":"singleLineText"}]},
			{"id":"tbl2","name":"Reviews","fields":[{"id":"fld9","name":"Score","type":"number"}]}
		]}`))
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := NewSourceClient(srv.URL+"/v0", "app1", "key", 5*time.Second, logger.Discard())

	tests := []struct {
		name    string
		table   string
		want    string
		wantErr bool
	}{
		{name: "by name", table: "Reviews", want: "Score"},
		{name: "by id", table: "tbl1", want: "Title"},
		{name: "unknown", table: "Authors", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := client.ListFields(context.Background(), tt.table)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.want, fields[0].Name)
		})
	}
}

func TestSourceClientListRecordsWithoutLimit(t *testing.T) {
	e := echo.New()
	e.GET("/v0/app1/tbl1", func(c echo.Context) error {
		assert.Equal(t, "100", c.QueryParam("pageSize"))
		if c.QueryParam("offset") == "" {
			return c.JSONBlob(http.StatusOK, []byte(`{"records":[{"id":"rec1","fields":{}}],"offset":"next"}`))
		}
		return c.JSONBlob(http.StatusOK, []byte(`{"records":[{"id":"rec2","fields":{}}]}`))
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := NewSourceClient(srv.URL+"/v0", "app1", "key", 5*time.Second, logger.Discard())
	records, err := client.ListRecords(context.Background(), models.TableDescriptor{ID: "tbl1", Name: "Preprints"}, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
