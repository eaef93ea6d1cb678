package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"storefront-gateway/internal/cart"
	"storefront-gateway/internal/client"
	"storefront-gateway/internal/config"
	"storefront-gateway/internal/metrics"
	"storefront-gateway/internal/service"
)

// upstreamCall is one request seen by the fake backend.
type upstreamCall struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// fakeUpstream records calls and answers them with a settable handler.
type fakeUpstream struct {
	*httptest.Server

	mu    sync.Mutex
	calls []upstreamCall
}

func newFakeUpstream(t *testing.T, reply http.HandlerFunc) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, upstreamCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		f.mu.Unlock()
		reply(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

// jsonReply answers every call with status and body as application/json.
func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeUpstream) Calls() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstreamCall(nil), f.calls...)
}

func (f *fakeUpstream) Last(t *testing.T) upstreamCall {
	t.Helper()
	calls := f.Calls()
	if len(calls) == 0 {
		t.Fatal("upstream was not called")
	}
	return calls[len(calls)-1]
}

// testGateway is a fully wired Echo instance pointed at an upstream URL.
type testGateway struct {
	e       *echo.Echo
	store   *cart.MemoryStore
	metrics *metrics.Metrics
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:         upstreamURL,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
		Cart: config.CartConfig{
			CookieName:            "cart_id",
			TTLMinutes:            60,
			TaxRate:               0.08,
			FreeShippingThreshold: 100,
			StandardShipping:      5.99,
			ExpressShipping:       12.99,
		},
	}
}

func newTestGateway(t *testing.T, cfg *config.Config) *testGateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	f, err := service.NewForwarder(client.NewBackendClient(cfg, logger, m), cfg, logger)
	if err != nil {
		t.Fatalf("NewForwarder: %v", err)
	}
	sf := service.NewStorefront(f, logger)
	store := cart.NewMemoryStore(cfg, logger, m)
	relay := NewRelay(cfg, logger, m)

	e := echo.New()
	RegisterRoutes(e,
		NewAdminHandler(f, relay),
		NewStorefrontHandler(sf, relay),
		NewCartHandler(cfg, store, sf, relay, logger),
		NewHealthHandler(cfg, "test"),
	)
	return &testGateway{e: e, store: store, metrics: m}
}

// do sends a request through the gateway. A non-empty body is sent as JSON.
func (g *testGateway) do(method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	g.e.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
	return m
}

// closedUpstreamURL returns the URL of a server that is no longer listening.
func closedUpstreamURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}
