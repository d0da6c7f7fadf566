package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/transport"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// maxBodySize bounds a single request body.
const maxBodySize = 4 << 20

const shutdownTimeout = 5 * time.Second

// HTTPTransport serves one JSON request per POST.
type HTTPTransport struct {
	addr        string
	contextFunc ContextFunc
	logger      *logging.Logger

	mu        sync.RWMutex
	handler   transport.MessageHandler
	server    *http.Server
	closeCh   chan struct{}
	closeOnce sync.Once
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPContextFunc sets a function applied to the context of every request.
func WithHTTPContextFunc(fn ContextFunc) HTTPOption {
	return func(t *HTTPTransport) {
		t.contextFunc = fn
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *logging.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates a new HTTP transport
func NewHTTPTransport(addr string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		addr:    addr,
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrDefault(t.logger).Named("http")
	t.server = &http.Server{
		Addr:              addr,
		Handler:           t.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return t
}

// Routes returns the HTTP handler serving the transport endpoints.
func (t *HTTPTransport) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleRequest)
	mux.HandleFunc("/jsonrpc", t.handleRequest)
	mux.HandleFunc("/healthz", t.handleHealth)
	return mux
}

// SetHandler sets the message handler without starting a listener.
func (t *HTTPTransport) SetHandler(handler transport.MessageHandler) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Start listens on the configured address until ctx is done or the transport
// is closed.
func (t *HTTPTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	t.SetHandler(handler)

	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return errors.Wrapf(err, "error listening on %s", t.addr)
	}
	t.logger.Info("http transport listening", logging.Fields{"addr": ln.Addr().String()})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- t.server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server error")
	case <-ctx.Done():
	case <-t.closeCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := t.server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "error shutting down http server")
	}
	return nil
}

// Close stops the listener. In-flight requests are drained by Start.
func (t *HTTPTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
	})
	return nil
}

func (t *HTTPTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/jsonrpc" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()
	if handler == nil {
		http.Error(w, "Server not ready", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodySize {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx := r.Context()
	if t.contextFunc != nil {
		ctx = t.contextFunc(ctx)
	}

	reply := handler(ctx, body)
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(reply); err != nil {
		t.logger.Warn("failed to write response", logging.Fields{"error": err})
	}
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
