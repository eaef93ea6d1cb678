// Package service implements request forwarding to the storefront backend
// and the storefront operations built on top of it.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"storefront-gateway/internal/client"
	"storefront-gateway/internal/config"
	"storefront-gateway/internal/model"
)

var (
	// ErrMalformedBody is returned when a JSON request body does not parse.
	ErrMalformedBody = errors.New("request body is not valid JSON")
	// ErrMalformedUpstream is returned when a JSON upstream body does not parse.
	ErrMalformedUpstream = errors.New("upstream body is not valid JSON")
	// ErrInvalidPath is returned for path segments that cannot be forwarded.
	ErrInvalidPath = errors.New("invalid upstream path segment")
)

// excludedRequestHeaders are never copied onto the outbound request.
// Content-Length is recomputed for the re-encoded body and Accept-Encoding
// is left to the transport so compressed replies arrive decoded.
var excludedRequestHeaders = map[string]bool{
	"Host":                true,
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
	"Accept-Encoding":     true,
}

const defaultContentType = "application/json"

// Forwarder turns one inbound request into one backend call and decodes the reply.
// It holds no per-request state and is safe for concurrent use.
type Forwarder struct {
	client  *client.BackendClient
	logger  *slog.Logger
	baseURL *url.URL
}

// NewForwarder creates a Forwarder targeting cfg.Upstream.BaseURL.
func NewForwarder(c *client.BackendClient, cfg *config.Config, logger *slog.Logger) (*Forwarder, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	return &Forwarder{
		client:  c,
		logger:  logger.With("component", "forwarder"),
		baseURL: u,
	}, nil
}

// Forward sends fr to the backend and returns the decoded reply.
//
// Non-GET requests without a Content-Type are sent as JSON. JSON bodies are
// validated and re-encoded before sending; anything else is sent verbatim.
// Upstream error statuses are not errors: they come back in the response.
func (f *Forwarder) Forward(ctx context.Context, fr *model.ForwardedRequest) (*model.ForwardedResponse, error) {
	header := filterRequestHeaders(fr.Header)

	var body io.Reader
	if fr.Method != http.MethodGet {
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", defaultContentType)
		}
		data, err := encodeBody(header.Get("Content-Type"), fr.Body)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			body = bytes.NewReader(data)
		}
	}

	f.logger.Debug("forwarding request",
		"method", fr.Method,
		"path", fr.Path,
	)

	resp, err := f.client.Do(ctx, fr.Method, f.buildUpstreamURL(fr.Path, fr.Query), header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	out, err := decodeBody(contentType, resp.Body, fr.StrictJSON)
	if err != nil {
		return nil, err
	}

	return &model.ForwardedResponse{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        out,
		SetCookie:   resp.Header.Values("Set-Cookie"),
	}, nil
}

func (f *Forwarder) buildUpstreamURL(path string, query url.Values) string {
	u := *f.baseURL
	u.Path = strings.TrimSuffix(f.baseURL.Path, "/") + path
	u.RawPath = ""
	u.RawQuery = query.Encode()
	return u.String()
}

// JoinPath builds an upstream path from a fixed prefix and captured segments,
// keeping the trailing slash the backend expects.
func JoinPath(prefix string, segments ...string) (string, error) {
	for _, s := range segments {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, "/\\") {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
	}
	p := strings.TrimSuffix(prefix, "/") + "/"
	if len(segments) > 0 {
		p += strings.Join(segments, "/") + "/"
	}
	return p, nil
}

// AdminPath returns the backend path of an admin resource.
func AdminPath(segments ...string) (string, error) {
	return JoinPath("/api/admin", segments...)
}

// filterRequestHeaders copies src minus hop-by-hop headers, including any
// header named by a Connection token.
func filterRequestHeaders(src http.Header) http.Header {
	dropped := make(map[string]bool)
	for _, v := range src.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if token = strings.TrimSpace(token); token != "" {
				dropped[textproto.CanonicalMIMEHeaderKey(token)] = true
			}
		}
	}

	dst := make(http.Header, len(src))
	for key, vals := range src {
		key = textproto.CanonicalMIMEHeaderKey(key)
		if excludedRequestHeaders[key] || dropped[key] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}

// isJSON reports whether a Content-Type value declares a JSON payload.
func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "application/json")
	}
	return media == "application/json" || strings.HasSuffix(media, "+json")
}

// encodeBody reads the inbound body. JSON is parsed and re-serialized so a
// malformed document never reaches the backend; an empty JSON body is sent empty.
func encodeBody(contentType string, r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if !isJSON(contentType) {
		return data, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}
	return buf.Bytes(), nil
}

// decodeBody turns an upstream body into a JSON document for relay.
// An empty body becomes {} whatever its content type; non-JSON text becomes
// a JSON string.
func decodeBody(contentType string, data []byte, strict bool) (json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if strict || isJSON(contentType) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedUpstream, err)
		}
		return buf.Bytes(), nil
	}

	text, err := json.Marshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("encode upstream text: %w", err)
	}
	return text, nil
}
