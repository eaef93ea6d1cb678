package handler

import (
	"github.com/labstack/echo/v4"

	"storefront-gateway/internal/model"
	"storefront-gateway/internal/service"
)

// StorefrontHandler serves the customer-facing API routes.
type StorefrontHandler struct {
	svc   *service.Storefront
	relay *Relay
}

// NewStorefrontHandler creates a StorefrontHandler.
func NewStorefrontHandler(svc *service.Storefront, relay *Relay) *StorefrontHandler {
	return &StorefrontHandler{svc: svc, relay: relay}
}

type wishlistRequest struct {
	ProductID model.ID `json:"product_id"`
}

// Login handles POST /api/auth/login.
func (h *StorefrontHandler) Login(c echo.Context) error {
	var req service.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return h.relay.Fail(c, err)
	}
	resp, err := h.svc.Login(c.Request().Context(), c.Request().Header, req)
	return h.relay.Reply(c, resp, err)
}

// PlaceOrder handles POST /api/orders.
func (h *StorefrontHandler) PlaceOrder(c echo.Context) error {
	var req service.OrderRequest
	if err := bindJSON(c, &req); err != nil {
		return h.relay.Fail(c, err)
	}
	resp, err := h.svc.PlaceOrder(c.Request().Context(), c.Request().Header, req)
	return h.relay.Reply(c, resp, err)
}

// OrderHistory handles GET /api/orders/history?userId=.
func (h *StorefrontHandler) OrderHistory(c echo.Context) error {
	resp, err := h.svc.OrderHistory(c.Request().Context(), c.Request().Header, c.QueryParam("userId"))
	return h.relay.Reply(c, resp, err)
}

// Profile handles GET /api/user/profile?userId=.
func (h *StorefrontHandler) Profile(c echo.Context) error {
	resp, err := h.svc.Profile(c.Request().Context(), c.Request().Header, c.QueryParam("userId"))
	return h.relay.Reply(c, resp, err)
}

// UpdateProfile handles PUT /api/user/profile.
func (h *StorefrontHandler) UpdateProfile(c echo.Context) error {
	fields := map[string]any{}
	if err := bindJSON(c, &fields); err != nil {
		return h.relay.Fail(c, err)
	}
	resp, err := h.svc.UpdateProfile(c.Request().Context(), c.Request().Header, fields)
	return h.relay.Reply(c, resp, err)
}

// Wishlist handles GET /api/wishlist.
func (h *StorefrontHandler) Wishlist(c echo.Context) error {
	resp, err := h.svc.Wishlist(c.Request().Context(), c.Request().Header)
	return h.relay.Reply(c, resp, err)
}

// AddToWishlist handles POST /api/wishlist.
func (h *StorefrontHandler) AddToWishlist(c echo.Context) error {
	var req wishlistRequest
	if err := bindJSON(c, &req); err != nil {
		return h.relay.Fail(c, err)
	}
	resp, err := h.svc.AddToWishlist(c.Request().Context(), c.Request().Header, req.ProductID)
	return h.relay.Reply(c, resp, err)
}

// RemoveFromWishlist handles DELETE /api/wishlist. The product may be given
// in the body or as the product_id query parameter.
func (h *StorefrontHandler) RemoveFromWishlist(c echo.Context) error {
	var req wishlistRequest
	if err := bindJSON(c, &req); err != nil {
		return h.relay.Fail(c, err)
	}
	if req.ProductID == "" {
		req.ProductID = model.ID(c.QueryParam("product_id"))
	}
	resp, err := h.svc.RemoveFromWishlist(c.Request().Context(), c.Request().Header, req.ProductID)
	return h.relay.Reply(c, resp, err)
}

// Reviews handles GET /api/products/:id/reviews.
func (h *StorefrontHandler) Reviews(c echo.Context) error {
	resp, err := h.svc.Reviews(c.Request().Context(), c.Request().Header, c.Param("id"))
	return h.relay.Reply(c, resp, err)
}

// SubmitReview handles POST /api/products/:id/reviews.
func (h *StorefrontHandler) SubmitReview(c echo.Context) error {
	review := map[string]any{}
	if err := bindJSON(c, &review); err != nil {
		return h.relay.Fail(c, err)
	}
	resp, err := h.svc.SubmitReview(c.Request().Context(), c.Request().Header, c.Param("id"), review)
	return h.relay.Reply(c, resp, err)
}
