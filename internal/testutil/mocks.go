// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/transport"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/upstream"
)

// MockAPI is a testify mock of upstream.API.
type MockAPI struct {
	mock.Mock
}

var _ upstream.API = (*MockAPI)(nil)

func (m *MockAPI) result(args mock.Arguments) (any, error) {
	return args.Get(0), args.Error(1)
}

// Get implements upstream.API.
func (m *MockAPI) Get(ctx context.Context, path string, query map[string]string) (any, error) {
	return m.result(m.Called(ctx, path, query))
}

// Post implements upstream.API.
func (m *MockAPI) Post(ctx context.Context, path string, body any) (any, error) {
	return m.result(m.Called(ctx, path, body))
}

// Put implements upstream.API.
func (m *MockAPI) Put(ctx context.Context, path string, body any) (any, error) {
	return m.result(m.Called(ctx, path, body))
}

// Patch implements upstream.API.
func (m *MockAPI) Patch(ctx context.Context, path string, body any) (any, error) {
	return m.result(m.Called(ctx, path, body))
}

// Delete implements upstream.API.
func (m *MockAPI) Delete(ctx context.Context, path string, body any) (any, error) {
	return m.result(m.Called(ctx, path, body))
}

// Request implements upstream.API.
func (m *MockAPI) Request(ctx context.Context, opts upstream.RequestOptions) (any, error) {
	return m.result(m.Called(ctx, opts))
}

// MockTransport implements transport.Transport for testing. Messages pushed
// with SimulateIncomingMessage are handed to the registered handler and the
// replies are recorded.
type MockTransport struct {
	StartFunc func(ctx context.Context, handler transport.MessageHandler) error
	CloseFunc func() error

	mu      sync.Mutex
	handler transport.MessageHandler
	replies [][]byte
	closed  bool
}

var _ transport.Transport = (*MockTransport)(nil)

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Start implements Transport.Start
func (m *MockTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
	if m.StartFunc != nil {
		return m.StartFunc(ctx, handler)
	}
	return nil
}

// Close implements Transport.Close
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// SimulateIncomingMessage feeds raw to the handler and returns its reply.
func (m *MockTransport) SimulateIncomingMessage(ctx context.Context, raw []byte) []byte {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()
	if handler == nil {
		return nil
	}

	reply := handler(ctx, raw)
	if reply != nil {
		m.mu.Lock()
		m.replies = append(m.replies, reply)
		m.mu.Unlock()
	}
	return reply
}

// Replies returns every non-nil reply produced so far.
func (m *MockTransport) Replies() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.replies...)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
