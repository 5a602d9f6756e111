package testutil

import (
	"bytes"
	"encoding/hex"
	"io"
	"net/url"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger provides a debug level logger that discards its output.
func NewLogger(t *testing.T) *zap.SugaredLogger {
	return NewLoggerWithWriter(t, io.Discard)
}

// NewLoggerWithBuffer provides a logger together with the buffer it writes JSON lines to.
func NewLoggerWithBuffer(t *testing.T) (*zap.SugaredLogger, *Buffer) {
	buf := &Buffer{}
	return NewLoggerWithWriter(t, buf), buf
}

// NewLoggerWithWriter provides a zap logger writing to w.
func NewLoggerWithWriter(t *testing.T, w io.Writer) *zap.SugaredLogger {
	// Zap only builds loggers on registered sink schemes. Registering a scheme
	// twice fails, so every test gets its own.
	scheme := TestScheme(t)
	factory := func(u *url.URL) (zap.Sink, error) { return newTestZapSink(w), nil }
	if err := zap.RegisterSink(scheme, factory); err != nil {
		t.Fatalf("registering zap scheme %q: %s", scheme, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.Sampling = nil
	cfg.OutputPaths = []string{scheme + "://" + t.Name()}
	cfg.ErrorOutputPaths = []string{"stderr"}
	base, err := cfg.Build()
	if err != nil {
		t.Fatalf("building zap logger: %s", err)
	}
	return base.Sugar()
}

// TestScheme generates a scheme that's unique to the test.
//
// It relies on testing.T.Name providing a unique name (which it should).
func TestScheme(t *testing.T) string {
	// schemes must start with [a-zA-Z]
	return "t" + hex.EncodeToString([]byte(t.Name()))
}

// Buffer is a bytes.Buffer safe for the concurrent writes of a logger.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testZapSink adapts an io.Writer to function as a zap.Sink.
type testZapSink struct {
	io.Writer
}

func newTestZapSink(w io.Writer) *testZapSink {
	return &testZapSink{
		Writer: w,
	}
}

// Sync implements zap.Sink
func (s *testZapSink) Sync() error {
	return nil
}

// Close implements zap.Sink
func (s *testZapSink) Close() error {
	return nil
}
