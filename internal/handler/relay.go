// Package handler holds the Echo handlers of the gateway.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"storefront-gateway/internal/cart"
	"storefront-gateway/internal/config"
	"storefront-gateway/internal/metrics"
	"storefront-gateway/internal/model"
	"storefront-gateway/internal/service"
)

// queryPattern matches query strings in URLs embedded in error messages.
// They can carry customer ids.
var queryPattern = regexp.MustCompile(`\?[^\s"]+`)

// Relay writes forwarded replies and gateway errors back to the caller.
type Relay struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	exposeErrors bool
}

// NewRelay creates a Relay. m may be nil.
func NewRelay(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		logger:       logger.With("component", "relay"),
		metrics:      m,
		exposeErrors: cfg.Debug.ExposeErrors,
	}
}

// Send relays a forwarded response: its status, its Set-Cookie headers and
// its JSON body. Statuses that forbid a body are sent without one.
func (r *Relay) Send(c echo.Context, resp *model.ForwardedResponse) error {
	for _, v := range resp.SetCookie {
		c.Response().Header().Add(echo.HeaderSetCookie, v)
	}
	if !bodyAllowed(resp.StatusCode) {
		return c.NoContent(resp.StatusCode)
	}
	return c.JSONBlob(resp.StatusCode, resp.Body)
}

// Reply sends resp, or maps err when the call failed.
func (r *Relay) Reply(c echo.Context, resp *model.ForwardedResponse, err error) error {
	if err != nil {
		return r.Fail(c, err)
	}
	return r.Send(c, resp)
}

// Fail maps err to an HTTP response. Validation failures keep their message;
// malformed input is a 400; anything else is a generic 500.
func (r *Relay) Fail(c echo.Context, err error) error {
	reason, status, body := r.classify(err)

	if r.metrics != nil {
		r.metrics.ForwardFailures.WithLabelValues(reason).Inc()
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	r.logger.Log(c.Request().Context(), level, "request failed",
		"err", sanitizeError(err),
		"reason", reason,
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	)

	return c.JSON(status, body)
}

func (r *Relay) classify(err error) (reason string, status int, body map[string]string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return "validation", ve.StatusCode(), map[string]string{"error": ve.Message}
	case errors.Is(err, service.ErrMalformedBody):
		return "malformed_body", http.StatusBadRequest, map[string]string{"message": "Malformed JSON body"}
	case errors.Is(err, service.ErrInvalidPath):
		return "invalid_path", http.StatusBadRequest, map[string]string{"message": "Invalid path"}
	case errors.Is(err, cart.ErrItemNotInCart):
		return "validation", http.StatusNotFound, map[string]string{"error": "Item not in cart"}
	case errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrUnknownShipping),
		errors.Is(err, cart.ErrEmptyCart):
		return "validation", http.StatusBadRequest, map[string]string{"error": err.Error()}
	}

	switch {
	case errors.Is(err, service.ErrMalformedUpstream):
		reason = "malformed_upstream"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, context.Canceled):
		reason = "canceled"
	default:
		reason = "upstream_unreachable"
	}

	body = map[string]string{"message": "Internal server error"}
	if r.exposeErrors {
		body["error"] = sanitizeError(err)
	}
	return reason, http.StatusInternalServerError, body
}

// bindJSON decodes the request body into v. An empty body leaves v untouched.
func bindJSON(c echo.Context, v any) error {
	err := c.Echo().JSONSerializer.Deserialize(c, v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %w", service.ErrMalformedBody, err)
}

// bodyAllowed reports whether a response with the given status may carry a body.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// sanitizeError redacts query strings from error messages that may contain upstream URLs.
func sanitizeError(err error) string {
	return queryPattern.ReplaceAllString(err.Error(), "?[REDACTED]")
}
