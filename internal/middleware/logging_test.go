package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

// logLines decodes one JSON object per non-empty line.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func newLoggedEcho(buf *bytes.Buffer, quiet ...string) *echo.Echo {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := echo.New()
	e.Use(RequestLogger(logger, quiet...))
	e.GET("/api/cart", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/admin/categories/:id", func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantLevel string
		wantRoute string
	}{
		{"success", "/api/cart", "INFO", "/api/cart"},
		{"server error", "/api/admin/categories/3", "ERROR", "/api/admin/categories/:id"},
		{"not found", "/nope", "WARN", ""},
		{"quiet path", "/healthz", "DEBUG", "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := newLoggedEcho(&buf, "/healthz")

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			e.ServeHTTP(httptest.NewRecorder(), req)

			lines := logLines(t, &buf)
			if len(lines) != 1 {
				t.Fatalf("got %d log lines, want 1", len(lines))
			}
			if lines[0]["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", lines[0]["level"], tt.wantLevel)
			}
			if lines[0]["path"] != tt.path {
				t.Errorf("path = %v, want %s", lines[0]["path"], tt.path)
			}
			if tt.wantRoute != "" && lines[0]["route"] != tt.wantRoute {
				t.Errorf("route = %v, want %s", lines[0]["route"], tt.wantRoute)
			}
		})
	}
}
