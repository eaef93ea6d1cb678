package handler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"storefront-gateway/internal/model"
	"storefront-gateway/internal/service"
)

// AdminHandler forwards admin dashboard calls to the backend admin API.
type AdminHandler struct {
	forwarder *service.Forwarder
	relay     *Relay
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(f *service.Forwarder, relay *Relay) *AdminHandler {
	return &AdminHandler{forwarder: f, relay: relay}
}

// Categories forwards the category collection. The backend reply is always
// parsed as JSON, whatever content type it declares.
func (h *AdminHandler) Categories(c echo.Context) error {
	return h.forward(c, true, "categories")
}

// Category forwards a single category.
func (h *AdminHandler) Category(c echo.Context) error {
	if c.Param("id") == "" {
		return h.Categories(c)
	}
	id, err := unescapeParam(c, c.Param("id"))
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return h.forward(c, false, "categories", id)
}

// CatchAll forwards any other admin resource, segment by segment.
func (h *AdminHandler) CatchAll(c echo.Context) error {
	segments, err := splitSegments(c, c.Param("*"))
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return h.forward(c, false, segments...)
}

func (h *AdminHandler) forward(c echo.Context, strict bool, segments ...string) error {
	path, err := service.AdminPath(segments...)
	if err != nil {
		return h.relay.Fail(c, err)
	}

	req := c.Request()
	resp, err := h.forwarder.Forward(req.Context(), &model.ForwardedRequest{
		Method:     req.Method,
		Path:       path,
		Query:      req.URL.Query(),
		Header:     req.Header,
		Body:       req.Body,
		StrictJSON: strict,
	})
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return h.relay.Send(c, resp)
}

// splitSegments splits a captured wildcard path into unescaped segments.
// Empty segments from doubled or trailing slashes are dropped.
func splitSegments(c echo.Context, raw string) ([]string, error) {
	var out []string
	for _, s := range strings.Split(raw, "/") {
		if s == "" {
			continue
		}
		seg, err := unescapeParam(c, s)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

// unescapeParam decodes a path parameter. Echo matches on the raw path only
// when the request path carried escapes, so only then is decoding needed.
func unescapeParam(c echo.Context, v string) (string, error) {
	if c.Request().URL.RawPath == "" {
		return v, nil
	}
	s, err := url.PathUnescape(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", service.ErrInvalidPath, err)
	}
	return s, nil
}
