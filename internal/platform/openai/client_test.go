package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server) Client {
	t.Helper()
	c, err := NewClient(logger.Nop(), Config{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "test-model",
		VideoModel: "sora-test",
		MaxRetries: 2,
	})
	require.NoError(t, err)
	return c
}

func TestGenerateJSONParsesOutputText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req responsesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "json_schema", req.Text.Format["type"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []any{map[string]any{
				"type": "message",
				"role": "assistant",
				"content": []any{map[string]any{
					"type": "output_text",
					"text": `{"action":"EXPAND_CANVAS"}`,
				}},
			}},
		})
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).GenerateJSON(t.Context(), "sys", "user", "intent", map[string]any{"type": "object"})
	require.NoError(t, err)
	assert.Equal(t, "EXPAND_CANVAS", out["action"])
}

func TestRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "vid_1", "status": "in_progress"})
	}))
	defer srv.Close()

	job, err := newTestClient(t, srv).GetVideoJob(t.Context(), "vid_1")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", job.Status)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestNonRetryableErrorReturnsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).GenerateText(t.Context(), "sys", "user")
	require.Error(t, err)
	var httpErr *openAIHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.HTTPStatusCode())
}

func TestCreateVideoJobSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/videos", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "sora-test", r.FormValue("model"))
		assert.Equal(t, "a falling apple", r.FormValue("prompt"))
		assert.Equal(t, "8", r.FormValue("seconds"))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "vid_42"})
	}))
	defer srv.Close()

	job, err := newTestClient(t, srv).CreateVideoJob(t.Context(), "a falling apple", 7)
	require.NoError(t, err)
	assert.Equal(t, "vid_42", job.ID)
	assert.Equal(t, "queued", job.Status)
}

func TestDecodeVideoJobKeepsRawAndError(t *testing.T) {
	job := decodeVideoJob(map[string]any{
		"id":     "v",
		"status": "FAILED",
		"error":  map[string]any{"message": "content policy"},
	})
	assert.Equal(t, "failed", job.Status)
	assert.Equal(t, "content policy", job.Error)
	assert.Equal(t, "v", job.Raw["id"])
}

func TestNormalizeVideoDuration(t *testing.T) {
	assert.Equal(t, 8, normalizeVideoDurationSeconds(0))
	assert.Equal(t, 4, normalizeVideoDurationSeconds(3))
	assert.Equal(t, 12, normalizeVideoDurationSeconds(30))
}
