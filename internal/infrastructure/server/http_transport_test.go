package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/transport"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

func newHTTPTestServer(t *testing.T, handler transport.MessageHandler, opts ...HTTPOption) *httptest.Server {
	t.Helper()
	opts = append([]HTTPOption{WithHTTPLogger(logging.NewNop())}, opts...)
	tr := NewHTTPTransport("127.0.0.1:0", opts...)
	if handler != nil {
		tr.SetHandler(handler)
	}
	srv := httptest.NewServer(tr.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPTransport_Post(t *testing.T) {
	srv := newHTTPTestServer(t, echoID)

	for _, path := range []string{"/", "/jsonrpc"} {
		t.Run(path, func(t *testing.T) {
			resp := post(t, srv.URL+path, `{"id":7,"method":"ping"}`)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":7}`, string(body))
		})
	}
}

func TestHTTPTransport_NotificationHasNoBody(t *testing.T) {
	srv := newHTTPTestServer(t, echoID)

	resp := post(t, srv.URL, `{"method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHTTPTransport_Rejections(t *testing.T) {
	srv := newHTTPTestServer(t, echoID)

	resp, err := http.Get(srv.URL + "/jsonrpc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = post(t, srv.URL+"/other", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv.URL, strings.Repeat("x", maxBodySize+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHTTPTransport_NotReady(t *testing.T) {
	srv := newHTTPTestServer(t, nil)

	resp := post(t, srv.URL, `{"id":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPTransport_Health(t *testing.T) {
	srv := newHTTPTestServer(t, echoID)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestHTTPTransport_ContextFunc(t *testing.T) {
	type key struct{}
	var seen any
	srv := newHTTPTestServer(t, func(ctx context.Context, msg []byte) []byte {
		seen = ctx.Value(key{})
		return []byte(`{}`)
	}, WithHTTPContextFunc(func(ctx context.Context) context.Context {
		return context.WithValue(ctx, key{}, "caller")
	}))

	post(t, srv.URL, `{"id":1}`)
	assert.Equal(t, "caller", seen)
}

func TestHTTPTransport_StartAndClose(t *testing.T) {
	tr := NewHTTPTransport("127.0.0.1:0", WithHTTPLogger(logging.NewNop()))

	done := make(chan error, 1)
	go func() { done <- tr.Start(context.Background(), echoID) }()

	require.NoError(t, tr.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("transport did not stop after close")
	}
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(Options{Kind: KindStdio, Logger: logging.NewNop()})
	require.NoError(t, err)
	assert.IsType(t, &StdioTransport{}, tr)

	tr, err = NewTransport(Options{Kind: KindHTTP, HTTPAddr: ":0", Logger: logging.NewNop()})
	require.NoError(t, err)
	assert.IsType(t, &HTTPTransport{}, tr)

	_, err = NewTransport(Options{Kind: "grpc"})
	assert.ErrorIs(t, err, ErrUnsupportedTransport)
}

func TestLoggingMiddleware(t *testing.T) {
	h := transport.Chain(echoID, LoggingMiddleware(logging.NewNop()))
	assert.JSONEq(t, `{"id":3}`, string(h(context.Background(), []byte(`{"id":3}`))))
	assert.Nil(t, h(context.Background(), []byte(`{}`)))
}
