package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/reefercheck/internal/lib/logger/sl"
)

type row struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`
}

func newTestClient(t *testing.T, r chi.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(sl.NewDiscardLogger(), Config{BaseURL: srv.URL + "/", APIKey: "test-key", Timeout: 2 * time.Second})
}

func TestSelect_SendsHeadersAndQuery(t *testing.T) {
	var got *http.Request
	r := chi.NewRouter()
	r.Get("/rest/v1/readings", func(w http.ResponseWriter, req *http.Request) {
		got = req
		w.Write([]byte(`[{"id":7,"device_id":"REEFER-01"}]`))
	})
	c := newTestClient(t, r)

	var rows []row
	err := c.Select(context.Background(), "readings", Query{
		Select:  "id,device_id",
		Order:   "created_at.desc",
		Limit:   5,
		Filters: []Filter{Eq("device_id", "REEFER-01"), Eq("resolved", false)},
	}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0].ID)

	require.NotNil(t, got)
	assert.Equal(t, "test-key", got.Header.Get("apikey"))
	assert.Equal(t, "Bearer test-key", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "return=representation", got.Header.Get("Prefer"))
	assert.NotEmpty(t, got.Header.Get("X-Request-Id"))

	q := got.URL.Query()
	assert.Equal(t, "id,device_id", q.Get("select"))
	assert.Equal(t, "created_at.desc", q.Get("order"))
	assert.Equal(t, "5", q.Get("limit"))
	assert.Equal(t, "eq.REEFER-01", q.Get("device_id"))
	assert.Equal(t, "eq.false", q.Get("resolved"))
}

func TestSelect_EmptyIsNotAnError(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/rest/v1/alerts", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})
	c := newTestClient(t, r)

	var rows []row
	require.NoError(t, c.Select(context.Background(), "alerts", Query{}, &rows))
	assert.Empty(t, rows)
}

func TestSelect_NonOKStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/rest/v1/devices", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid API key"}`))
	})
	c := newTestClient(t, r)

	var rows []row
	err := c.Select(context.Background(), "devices", Query{}, &rows)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "devices", se.Table)
	assert.Contains(t, se.Error(), "Invalid API key")
}

func TestSelect_OnlyOKCounts(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/rest/v1/devices", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(`[]`))
	})
	c := newTestClient(t, r)

	var rows []row
	assert.Error(t, c.Select(context.Background(), "devices", Query{}, &rows))
}

func TestSelect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(sl.NewDiscardLogger(), Config{BaseURL: url, APIKey: "k", Timeout: time.Second})

	var rows []row
	err := c.Select(context.Background(), "devices", Query{}, &rows)
	require.Error(t, err)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
	assert.Error(t, c.Ping(context.Background()))
}

func TestInsert_AcceptsCreated(t *testing.T) {
	var body map[string]any
	r := chi.NewRouter()
	r.Post("/rest/v1/readings", func(w http.ResponseWriter, req *http.Request) {
		data, _ := io.ReadAll(req.Body)
		json.Unmarshal(data, &body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":101,"device_id":"REEFER-02"}]`))
	})
	c := newTestClient(t, r)

	var created []row
	err := c.Insert(context.Background(), "readings", map[string]any{"device_id": "REEFER-02"}, &created)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(101), created[0].ID)
	assert.Equal(t, "REEFER-02", body["device_id"])
}

func TestInsert_AcceptsOK(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/rest/v1/alerts", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"id":5,"device_id":"REEFER-01"}]`))
	})
	c := newTestClient(t, r)

	var created []row
	err := c.Insert(context.Background(), "alerts", map[string]any{"device_id": "REEFER-01"}, &created)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(5), created[0].ID)

	assert.NoError(t, c.Insert(context.Background(), "alerts", map[string]any{"device_id": "REEFER-01"}, nil))
}

func TestInsert_Rejected(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/rest/v1/alerts", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23503"}`))
	})
	c := newTestClient(t, r)

	var created []row
	err := c.Insert(context.Background(), "alerts", map[string]any{"device_id": "X"}, &created)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.Code)
	assert.Empty(t, created)
}

func TestUpdate(t *testing.T) {
	var rawQuery, method string
	r := chi.NewRouter()
	r.Patch("/rest/v1/alerts", func(w http.ResponseWriter, req *http.Request) {
		rawQuery = req.URL.RawQuery
		method = req.Method
		w.WriteHeader(http.StatusNoContent)
	})
	r.Patch("/rest/v1/devices", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c := newTestClient(t, r)

	var rows []row
	ok, err := c.Update(context.Background(), "alerts", "id=eq.42", map[string]bool{"acknowledged": true}, &rows)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, rows)
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "id=eq.42", rawQuery)

	ok, err = c.Update(context.Background(), "devices", "device_id=eq.X", map[string]string{"name": "n"}, nil)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestUpdate_DecodesRepresentation(t *testing.T) {
	r := chi.NewRouter()
	r.Patch("/rest/v1/alerts", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("id") == "eq.42" {
			w.Write([]byte(`[{"id":42,"device_id":"REEFER-01"}]`))
			return
		}
		w.Write([]byte(`[]`))
	})
	c := newTestClient(t, r)

	var rows []row
	ok, err := c.Update(context.Background(), "alerts", "id=eq.42", map[string]bool{"acknowledged": true}, &rows)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42), rows[0].ID)

	rows = nil
	ok, err = c.Update(context.Background(), "alerts", "id=eq.999", map[string]bool{"acknowledged": true}, &rows)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestCount(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/rest/v1/readings", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "count=exact", req.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "0-0/1234")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(`[{"id":1}]`))
	})
	r.Get("/rest/v1/alerts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Range", "*/0")
		w.Write([]byte(`[]`))
	})
	r.Get("/rest/v1/devices", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})
	c := newTestClient(t, r)

	n, err := c.Count(context.Background(), "readings", Query{Select: "id"})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), n)

	n, err = c.Count(context.Background(), "alerts", Query{Select: "id", Filters: []Filter{Eq("resolved", false)}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = c.Count(context.Background(), "devices", Query{})
	assert.Error(t, err)
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		header  string
		want    int64
		wantErr bool
	}{
		{"0-9/42", 42, false},
		{"*/0", 0, false},
		{"0-0/*", 0, true},
		{"", 0, true},
		{"0-0/", 0, true},
		{"0-0/abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := parseContentRange(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryValues(t *testing.T) {
	base := Query{Select: "*", Limit: 0}
	q := base.Where(Filter{"id", "gt", "10"}, Filter{"id", "lt", "20"})
	v := q.Values()

	assert.Equal(t, "*", v.Get("select"))
	assert.Empty(t, v.Get("limit"))
	assert.Equal(t, []string{"gt.10", "lt.20"}, v["id"])
	assert.Empty(t, base.Filters)
	assert.Equal(t, "id=eq.3", Eq("id", 3).String())
	assert.Equal(t, "resolved=eq.false", Eq("resolved", false).String())
}
