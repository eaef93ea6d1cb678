// Package model defines shared types for the gateway.
package model

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

// ForwardedRequest is one inbound call rebuilt for the backend API.
// It is owned by a single request and discarded once the call completes.
type ForwardedRequest struct {
	Method string
	Path   string // upstream path, already expanded from its route template
	Query  url.Values
	Header http.Header
	Body   io.Reader

	// StrictJSON parses the upstream body as JSON regardless of its content type.
	StrictJSON bool
}

// ForwardedResponse is the upstream reply, decoded and ready to relay.
type ForwardedResponse struct {
	StatusCode  int
	ContentType string
	// Body is always a JSON document: the upstream JSON value, or the
	// upstream text encoded as a JSON string.
	Body      json.RawMessage
	SetCookie []string
}

// IsSuccess reports whether the upstream answered with a 2xx status.
func (r *ForwardedResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
