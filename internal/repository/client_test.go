package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"almaconnector/internal/config"
	"almaconnector/internal/logger"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/marc"
	"almaconnector/pkg/retry"
)

const recordJSON = `{
  "id": "abcde-12345",
  "is_published": true,
  "metadata": {
    "leader": "00000nam a2200000 c 4500",
    "fields": {
      "001": "990001234",
      "245": [{"ind1": "0", "ind2": "0", "subfields": {"a": ["A title"]}}]
    }
  },
  "access": {"owned_by": [{"user": 1}], "files": "open", "metadata": "open"},
  "files": {"enabled": true}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.RepositoryConfig{URL: srv.URL, Token: "tok"}, logger.NopLogger(),
		WithRetryPolicy(retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}))
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(config.RepositoryConfig{}, logger.NopLogger())
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestClient_CreateDraft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/publications", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		access := body["access"].(map[string]any)
		assert.Equal(t, "open", access["files"])
		assert.Contains(t, body, "metadata")

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, strings.Replace(recordJSON, `"is_published": true`, `"is_published": false`, 1))
	})

	draft, err := c.CreateDraft(context.Background(), marc.Metadata{}, OpenAccess(SystemIdentity()))
	require.NoError(t, err)
	assert.Equal(t, "abcde-12345", draft.ID)
	assert.False(t, draft.IsPublished)
	assert.Equal(t, "990001234", draft.Metadata.ControlFields["001"])
	assert.Equal(t, "abcde-12345", draft.Raw["id"])
}

func TestClient_UploadFile(t *testing.T) {
	var mu sync.Mutex
	var steps []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		steps = append(steps, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.Method == http.MethodPut {
			data, _ := io.ReadAll(r.Body)
			assert.Equal(t, "pdf-bytes", string(data))
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		}
		_, _ = io.WriteString(w, "{}")
	})

	err := c.UploadFile(context.Background(), "abcde-12345", "thesis.pdf", strings.NewReader("pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"POST /api/publications/abcde-12345/draft/files",
		"PUT /api/publications/abcde-12345/draft/files/thesis.pdf/content",
		"POST /api/publications/abcde-12345/draft/files/thesis.pdf/commit",
	}, steps)
}

func TestClient_GetRecord_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, recordJSON)
	})

	rec, err := c.GetRecord(context.Background(), "abcde-12345")
	require.NoError(t, err)
	assert.Equal(t, "abcde-12345", rec.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GetRecord_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status": 404, "message": "The persistent identifier does not exist."}`)
	})

	_, err := c.GetRecord(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "does not exist")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_PublishIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Publish(context.Background(), "abcde-12345")
	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_UpdateDraftKeepsAccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "access")
		_, _ = io.WriteString(w, recordJSON)
	})

	_, err := c.UpdateDraft(context.Background(), "abcde-12345", marc.Metadata{}, nil)
	require.NoError(t, err)
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "metadata.fields.035:*", q.Get("q"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "50", q.Get("size"))
		_, _ = io.WriteString(w, `{"hits": {"hits": [`+recordJSON+`], "total": 51}}`)
	})

	res, err := c.Search(context.Background(), "metadata.fields.035:*", 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 51, res.Hits.Total)
	require.Len(t, res.Hits.Hits, 1)
	assert.Equal(t, "abcde-12345", res.Hits.Hits[0].ID)
}
