package handler

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAdmin_DeleteCategory(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	g := newTestGateway(t, testConfig(up.URL))

	rec := g.do(http.MethodDelete, "/api/admin/categories/7", "", nil)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty for 204", rec.Body.String())
	}
	call := up.Last(t)
	if call.Method != http.MethodDelete || call.Path != "/api/admin/categories/7/" {
		t.Errorf("upstream call = %s %s, want DELETE /api/admin/categories/7/", call.Method, call.Path)
	}
	if call.Body != "" {
		t.Errorf("upstream body = %q, want empty", call.Body)
	}
}

func TestAdmin_CreateCategory(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusCreated, `{"id":12,"name":"Shoes"}`))
	g := newTestGateway(t, testConfig(up.URL))

	rec := g.do(http.MethodPost, "/api/admin/categories", `{"name": "Shoes"}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if body := rec.Body.String(); body != `{"id":12,"name":"Shoes"}` {
		t.Errorf("body = %s, want the backend reply", body)
	}

	call := up.Last(t)
	if call.Path != "/api/admin/categories/" {
		t.Errorf("upstream path = %q, want /api/admin/categories/", call.Path)
	}
	if call.Body != `{"name":"Shoes"}` {
		t.Errorf("upstream body = %q", call.Body)
	}
	if ct := call.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("upstream Content-Type = %q", ct)
	}
}

func TestAdmin_CategoriesStrictJSON(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Hats"}]`))
	})
	g := newTestGateway(t, testConfig(up.URL))

	rec := g.do(http.MethodGet, "/api/admin/categories", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != `[{"id":1,"name":"Hats"}]` {
		t.Errorf("body = %s, want the parsed JSON array", body)
	}
}

func TestAdmin_CatchAll(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{"id":5}`))
	g := newTestGateway(t, testConfig(up.URL))

	tests := []struct {
		name      string
		method    string
		target    string
		wantPath  string
		wantQuery string
	}{
		{"product", http.MethodGet, "/api/admin/products/5", "/api/admin/products/5/", ""},
		{"trailing slash", http.MethodGet, "/api/admin/products/5/", "/api/admin/products/5/", ""},
		{"query passes through", http.MethodGet, "/api/admin/orders?status=pending", "/api/admin/orders/", "status=pending"},
		{"patch", http.MethodPatch, "/api/admin/orders/3/status", "/api/admin/orders/3/status/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := g.do(tt.method, tt.target, "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			call := up.Last(t)
			if call.Method != tt.method || call.Path != tt.wantPath || call.Query != tt.wantQuery {
				t.Errorf("upstream call = %s %s?%s, want %s %s?%s",
					call.Method, call.Path, call.Query, tt.method, tt.wantPath, tt.wantQuery)
			}
		})
	}
}

func TestAdmin_RelaysUpstreamErrors(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc"})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"Admin only"}`))
	})
	g := newTestGateway(t, testConfig(up.URL))

	rec := g.do(http.MethodGet, "/api/admin/users", "", nil)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if body := decodeMap(t, rec); body["detail"] != "Admin only" {
		t.Errorf("body = %v", body)
	}
	if got := rec.Header().Get("Set-Cookie"); got != "sessionid=abc" {
		t.Errorf("Set-Cookie = %q, want relayed", got)
	}
}

func TestAdmin_ForwardsCredentials(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{}`))
	g := newTestGateway(t, testConfig(up.URL))

	g.do(http.MethodGet, "/api/admin/products", "", http.Header{
		"Cookie":        {"sessionid=abc"},
		"Authorization": {"Bearer tok"},
		"Connection":    {"X-Hop"},
		"X-Hop":         {"dropped"},
	})

	call := up.Last(t)
	if call.Header.Get("Cookie") != "sessionid=abc" || call.Header.Get("Authorization") != "Bearer tok" {
		t.Errorf("credentials not forwarded: %v", call.Header)
	}
	if call.Header.Get("X-Hop") != "" {
		t.Error("header named by Connection must not be forwarded")
	}
}

func TestAdmin_MalformedBody(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{}`))
	g := newTestGateway(t, testConfig(up.URL))

	rec := g.do(http.MethodPost, "/api/admin/categories", `{"name":`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(up.Calls()) != 0 {
		t.Error("malformed body must not reach the backend")
	}
	if got := testutil.ToFloat64(g.metrics.ForwardFailures.WithLabelValues("malformed_body")); got != 1 {
		t.Errorf("forward_failures{malformed_body} = %v, want 1", got)
	}
}

func TestAdmin_InvalidSegment(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{}`))
	g := newTestGateway(t, testConfig(up.URL))

	rec := g.do(http.MethodGet, "/api/admin/products/a%2Fb", "", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(up.Calls()) != 0 {
		t.Error("invalid path must not reach the backend")
	}
}

func TestAdmin_UpstreamUnreachable(t *testing.T) {
	g := newTestGateway(t, testConfig(closedUpstreamURL(t)))

	rec := g.do(http.MethodGet, "/api/admin/products", "", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["message"] != "Internal server error" {
		t.Errorf("message = %v", body["message"])
	}
	if _, ok := body["error"]; ok {
		t.Error("error detail must be hidden unless debug.expose_errors is set")
	}
	if got := testutil.ToFloat64(g.metrics.ForwardFailures.WithLabelValues("upstream_unreachable")); got != 1 {
		t.Errorf("forward_failures{upstream_unreachable} = %v, want 1", got)
	}
}

func TestAdmin_ExposeErrors(t *testing.T) {
	cfg := testConfig(closedUpstreamURL(t))
	cfg.Debug.ExposeErrors = true
	g := newTestGateway(t, cfg)

	rec := g.do(http.MethodGet, "/api/admin/products?secret=1", "", nil)

	body := decodeMap(t, rec)
	detail, _ := body["error"].(string)
	if detail == "" {
		t.Fatal("expected error detail with debug.expose_errors")
	}
	if body["message"] != "Internal server error" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestAdmin_MalformedUpstreamJSON(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{"broken":`))
	g := newTestGateway(t, testConfig(up.URL))

	rec := g.do(http.MethodGet, "/api/admin/products", "", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := testutil.ToFloat64(g.metrics.ForwardFailures.WithLabelValues("malformed_upstream")); got != 1 {
		t.Errorf("forward_failures{malformed_upstream} = %v, want 1", got)
	}
}
