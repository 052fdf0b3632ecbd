package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := globalLogger
	globalLogger = zap.New(core)
	t.Cleanup(func() { globalLogger = prev })
	return logs
}

func TestWithContextBeforeInit(t *testing.T) {
	prev := globalLogger
	globalLogger = nil
	defer func() { globalLogger = prev }()

	if WithContext(context.Background()) == nil {
		t.Fatal("expected a no-op logger before Init")
	}
	Warn("dropped")
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	logs := observe(t)

	var handlerLogged bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WithContext(r.Context()).Warn("inside handler")
		handlerLogged = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	id := rec.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("expected a generated request id")
	}
	if !handlerLogged {
		t.Fatal("handler did not run")
	}

	inside := logs.FilterMessage("inside handler").All()
	if len(inside) != 1 || inside[0].ContextMap()["request_id"] != id {
		t.Errorf("expected handler log tagged with %s, got %+v", id, inside)
	}

	done := logs.FilterMessage("request completed").All()
	if len(done) != 1 {
		t.Fatalf("expected one completion log, got %d", len(done))
	}
	if status := done[0].ContextMap()["status"]; status != int64(http.StatusTeapot) {
		t.Errorf("expected status 418 logged, got %v", status)
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	observe(t)

	h := Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected incoming id to be echoed, got %q", got)
	}
}
