package server

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain/transport"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// maxLineSize bounds a single framed message.
const maxLineSize = 4 << 20

// ContextFunc derives the per-message context, e.g. to attach a caller.
type ContextFunc func(ctx context.Context) context.Context

// StdioTransport serves newline-delimited JSON over a reader and a writer.
// Every line is handled on its own goroutine; writes are serialized.
type StdioTransport struct {
	reader      io.Reader
	writer      *bufio.Writer
	contextFunc ContextFunc
	logger      *logging.Logger

	writeMu   sync.Mutex
	inflight  sync.WaitGroup
	closeCh   chan struct{}
	closeOnce sync.Once
}

// StdioOption configures a StdioTransport.
type StdioOption func(*StdioTransport)

// WithIO replaces standard input and output.
func WithIO(r io.Reader, w io.Writer) StdioOption {
	return func(t *StdioTransport) {
		t.reader = r
		t.writer = bufio.NewWriter(w)
	}
}

// WithContextFunc sets a function applied to the context of every message.
func WithContextFunc(fn ContextFunc) StdioOption {
	return func(t *StdioTransport) {
		t.contextFunc = fn
	}
}

// WithStdioLogger sets the logger.
func WithStdioLogger(logger *logging.Logger) StdioOption {
	return func(t *StdioTransport) {
		t.logger = logger
	}
}

// NewStdioTransport creates a new stdio transport
func NewStdioTransport(opts ...StdioOption) *StdioTransport {
	t := &StdioTransport{
		reader:  os.Stdin,
		writer:  bufio.NewWriter(os.Stdout),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.OrDefault(t.logger).Named("stdio")
	return t
}

// Start reads messages until the input ends, ctx is done or the transport is
// closed, then waits for in-flight messages to be answered.
func (t *StdioTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	if t.contextFunc != nil {
		ctx = t.contextFunc(ctx)
	}

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go t.readLines(lines, readErr)

	t.logger.Info("stdio transport started")
	defer t.inflight.Wait()
	defer t.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.closeCh:
			return nil
		case err := <-readErr:
			if err != nil {
				return errors.Wrap(err, "error reading from stdin")
			}
			t.logger.Info("stdin closed")
			return nil
		case line := <-lines:
			t.inflight.Add(1)
			go func() {
				defer t.inflight.Done()
				t.handle(ctx, handler, line)
			}()
		}
	}
}

func (t *StdioTransport) readLines(lines chan<- []byte, readErr chan<- error) {
	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := make([]byte, len(raw))
		copy(line, raw)

		select {
		case lines <- line:
		case <-t.closeCh:
			readErr <- nil
			return
		}
	}
	readErr <- scanner.Err()
}

func (t *StdioTransport) handle(ctx context.Context, handler transport.MessageHandler, line []byte) {
	reply := handler(ctx, line)
	if reply == nil {
		return
	}
	if err := t.write(reply); err != nil {
		t.logger.Error("failed to write response", logging.Fields{"error": err})
	}
}

func (t *StdioTransport) write(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return errors.Wrap(err, "error writing message")
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "error writing newline")
	}
	if err := t.writer.Flush(); err != nil {
		return errors.Wrap(err, "error flushing writer")
	}
	return nil
}

// Close stops reading. Messages already read are still answered.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
	})
	return nil
}
