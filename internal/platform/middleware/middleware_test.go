package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var okHandler = func(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rid := rec.Header().Get(RequestIDHeader)
	if rid == "" {
		t.Fatal("expected a generated request id in the response")
	}
	if got, _ := c.Get("request_id").(string); got != rid {
		t.Errorf("context id %q should match response header %q", got, rid)
	}
}

func TestRequestID_ReusesCallerID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "caller-supplied-id" {
		t.Errorf("expected the caller's id to be echoed back, got %q", got)
	}
}

func TestLogger_LevelsByResponseClass(t *testing.T) {
	cases := []struct {
		name      string
		handler   echo.HandlerFunc
		wantLevel string
	}{
		{"success logs info", okHandler, "info"},
		{
			"client error logs warn",
			func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "missing") },
			"warn",
		},
		{
			"server error logs error",
			func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") },
			"error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := zerolog.New(&buf)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/measures", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.Set("request_id", "rid-123")

			_ = Logger(log)(tc.handler)(c)

			var line map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("decode log line: %v", err)
			}
			if line["level"] != tc.wantLevel {
				t.Errorf("expected %s level, got %v", tc.wantLevel, line["level"])
			}
			if line["request_id"] != "rid-123" {
				t.Errorf("expected the request id on the line, got %v", line["request_id"])
			}
			if line["path"] != "/api/v1/measures" {
				t.Errorf("expected the request path on the line, got %v", line["path"])
			}
		})
	}
}

func TestLogger_PreservesHandlerError(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	want := echo.NewHTTPError(http.StatusForbidden, "no")
	got := Logger(zerolog.New(&buf))(func(c echo.Context) error { return want })(c)
	if got != want {
		t.Errorf("the handler error must pass through unchanged, got %v", got)
	}
}

func TestRecovery_PanicBecomesEnvelope(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "rid-456")

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("matcher blew up")
	})(c)

	if err != nil {
		t.Fatalf("the panic should be absorbed, got %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var envelope map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope["error"] != "internal server error" {
		t.Errorf("unexpected envelope error: %q", envelope["error"])
	}
	if envelope["request_id"] != "rid-456" {
		t.Errorf("the envelope should carry the request id, got %q", envelope["request_id"])
	}
	if !strings.Contains(buf.String(), "matcher blew up") {
		t.Error("the panic value should be logged")
	}
	if !strings.Contains(buf.String(), "stack") {
		t.Error("the stack should be logged")
	}
}

func TestRecovery_NoPanicPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := Recovery(zerolog.New(&buf))(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be logged for a clean request")
	}
}

func TestRateLimit_BurstThenRejects(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 3})

	send := func() error {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/measures", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		return mw(okHandler)(e.NewContext(req, rec))
	}

	for i := 0; i < 3; i++ {
		if err := send(); err != nil {
			t.Fatalf("request %d within burst should pass: %v", i, err)
		}
	}
	err := send()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected an HTTP error, got %v", err)
	}
	if he.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", he.Code)
	}
}

func TestRateLimit_PerClientBuckets(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	send := func(addr string) error {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/measures", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		return mw(okHandler)(e.NewContext(req, rec))
	}

	if err := send("10.0.0.1:1234"); err != nil {
		t.Fatalf("first client's first request should pass: %v", err)
	}
	if err := send("10.0.0.1:1234"); err == nil {
		t.Error("first client's second request should be limited")
	}
	// A different client gets its own bucket.
	if err := send("10.0.0.2:1234"); err != nil {
		t.Errorf("second client should not share the first client's bucket: %v", err)
	}
}
