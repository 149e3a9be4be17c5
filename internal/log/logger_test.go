package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func bufferedLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Level:     slog.LevelDebug,
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferedLogger(&buf, ComponentIngest)

	logger.Info("rows parsed", FieldRecords, 3)

	out := buf.String()
	if !strings.Contains(out, "component=ingest") {
		t.Fatalf("missing component field: %s", out)
	}
	if !strings.Contains(out, "records=3") {
		t.Fatalf("missing records field: %s", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferedLogger(&buf, ComponentApp).WithComponent(ComponentWorker)

	if logger.Component() != ComponentWorker {
		t.Fatalf("component = %q, want %q", logger.Component(), ComponentWorker)
	}

	logger.Warn("snapshot skipped")
	if !strings.Contains(buf.String(), "component=worker") {
		t.Fatalf("missing worker component: %s", buf.String())
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferedLogger(&buf, ComponentHTTP)

	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != logger {
		t.Fatal("context did not yield the injected logger")
	}

	fallback := FromContext(context.Background())
	if fallback == nil || fallback.Component() != "unknown" {
		t.Fatalf("fallback logger = %+v", fallback)
	}
}

func TestStructuredLoggerDatasetImported(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferedLogger(&buf, ComponentHTTP))

	sl.LogDatasetImported(context.Background(), "ds-1", "sales.csv", 10, 2)

	out := buf.String()
	for _, want := range []string{
		"dataset_id=ds-1", "dataset=sales.csv", "records=10",
		"skipped=2", "operation=import",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferedLogger(&buf, ComponentHTTP))

	fields := NewFields().WithClientIP("10.0.0.1").WithRequestID("req_1")
	sl.LogError(context.Background(), "Chart render failed", errors.New("no data"), ComponentHTTP, OpRender, fields)

	out := buf.String()
	for _, want := range []string{
		"client_ip=10.0.0.1", "request_id=req_1",
		"operation=render", `error="no data"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
