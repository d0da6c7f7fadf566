package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

type staticHeaders map[string]string

func (h staticHeaders) AuthHeaders(context.Context) (map[string]string, error) {
	return h, nil
}

type failingHeaders struct{}

func (failingHeaders) AuthHeaders(context.Context) (map[string]string, error) {
	return nil, errors.New("no credentials configured")
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithLogger(logging.NewNop()), WithHTTPClient(srv.Client())}, opts...)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: time.Second}, opts...)
}

func TestGet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/features", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("pageLimit"))
		assert.False(t, r.URL.Query().Has("status"))
		assert.Equal(t, "Bearer pb-token", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.Header.Get("X-Version"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"f1"}]}`))
	}, WithHeaderSource(staticHeaders{"Authorization": "Bearer pb-token", "X-Version": "1"}))

	out, err := c.Get(context.Background(), "/features", map[string]string{"pageLimit": "5", "status": ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": []any{map[string]any{"id": "f1"}}}, out)
}

func TestPostSendsJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, map[string]any{"data": map[string]any{"name": "Dark mode"}}, payload)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"f2"}}`))
	})

	out, err := c.Post(context.Background(), "features", map[string]any{"data": map[string]any{"name": "Dark mode"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": map[string]any{"id": "f2"}}, out)
}

func TestMethodsAndEmptyBody(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path+" "+r.Header.Get("X-Trace"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	out, err := c.Put(ctx, "/a", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
	_, err = c.Patch(ctx, "/b", map[string]any{})
	require.NoError(t, err)
	_, err = c.Delete(ctx, "/c", nil)
	require.NoError(t, err)
	_, err = c.Request(ctx, RequestOptions{Endpoint: "/d", Headers: map[string]string{"X-Trace": "t1"}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PUT /a ", "PATCH /b ", "DELETE /c ", "GET /d t1"}, seen)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		message   string
		retryable bool
	}{
		{name: "not found", status: 404, body: `{"message":"Feature not found"}`, message: "Feature not found", retryable: false},
		{name: "validation", status: 422, body: `{"errors":[{"detail":"name is required"}]}`, message: "name is required", retryable: false},
		{name: "rate limited", status: 429, body: ``, message: "Too Many Requests", retryable: true},
		{name: "bad gateway", status: 502, body: `<html>`, message: "Bad Gateway", retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Get(context.Background(), "/features/x", nil)
			require.Error(t, err)

			var upErr *Error
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tt.status, upErr.StatusCode)
			assert.Equal(t, tt.message, upErr.Message)
			assert.Equal(t, tt.body, upErr.Body)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, WithLogger(logging.NewNop()))
	_, err := c.Get(context.Background(), "/features", nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestTimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, WithLogger(logging.NewNop()))
	_, err := c.Get(context.Background(), "/slow", nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCancelledIsNotRetryable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.Get(ctx, "/features", nil)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestHeaderSourceFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}, WithHeaderSource(failingHeaders{}))

	_, err := c.Get(context.Background(), "/features", nil)
	assert.ErrorContains(t, err, "resolve auth headers")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(&Error{Message: "read body", Temporary: true}))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(&Error{StatusCode: 400}))
	assert.Equal(t, "upstream returned 400: Bad Request", (&Error{StatusCode: 400, Message: "Bad Request"}).Error())
	assert.Equal(t, "upstream request failed: reset", (&Error{Message: "reset"}).Error())
}
