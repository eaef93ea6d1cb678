package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"storefront-gateway/internal/model"
)

// ValidationError reports a request rejected before it reached the backend.
type ValidationError struct {
	Status  int // HTTP status; 0 means 400
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StatusCode returns the HTTP status the error should be answered with.
func (e *ValidationError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// credentialHeaders are the caller headers carried on storefront calls.
var credentialHeaders = []string{"Cookie", "Authorization", "X-Csrftoken", "Accept-Language"}

// LoginRequest is the body of a customer login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OrderLine is one cart line as the storefront UI sends it.
type OrderLine struct {
	ID       model.ID `json:"id"`
	Quantity int      `json:"quantity"`
	Price    float64  `json:"price"`
}

// OrderRequest is the body of an order placement.
type OrderRequest struct {
	DeliveryAddress string      `json:"delivery_address"`
	Items           []OrderLine `json:"items"`
	Total           float64     `json:"total"`
}

type backendOrderItem struct {
	Product         model.ID `json:"product"`
	Quantity        int      `json:"quantity"`
	PriceAtPurchase float64  `json:"price_at_purchase"`
}

type backendOrder struct {
	DeliveryAddress string             `json:"delivery_address"`
	OrderItems      []backendOrderItem `json:"order_items"`
	TotalPrice      float64            `json:"total_price"`
}

// Storefront implements the customer-facing backend calls on top of the Forwarder.
type Storefront struct {
	forwarder *Forwarder
	logger    *slog.Logger
}

// NewStorefront creates a Storefront.
func NewStorefront(f *Forwarder, logger *slog.Logger) *Storefront {
	return &Storefront{
		forwarder: f,
		logger:    logger.With("component", "storefront"),
	}
}

// Login authenticates a customer and relays the backend session cookie.
func (s *Storefront) Login(ctx context.Context, header http.Header, req LoginRequest) (*model.ForwardedResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, invalid("Email and password are required")
	}

	resp, err := s.call(ctx, http.MethodPost, "/api/auth/login/", nil, header, req)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return reply(resp.StatusCode, map[string]string{
			"message": errorMessage(resp.Body, "Login failed", "error"),
		}, nil)
	}

	var data struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		// The session cookie is still valid; report the login without a user.
		s.logger.Warn("login reply has no user object", "err", err)
		data.User = json.RawMessage("null")
	}

	return reply(http.StatusOK, map[string]any{
		"user":    data.User,
		"message": "Login successful",
		"role":    userRole(data.User),
	}, resp.SetCookie)
}

// PlaceOrder validates an order and submits it in the backend's order format.
func (s *Storefront) PlaceOrder(ctx context.Context, header http.Header, req OrderRequest) (*model.ForwardedResponse, error) {
	if req.DeliveryAddress == "" {
		return nil, invalid("Delivery address is required")
	}
	if len(req.Items) == 0 {
		return nil, invalid("Order items are required")
	}

	order := backendOrder{
		DeliveryAddress: req.DeliveryAddress,
		OrderItems:      make([]backendOrderItem, 0, len(req.Items)),
		TotalPrice:      req.Total,
	}
	for _, it := range req.Items {
		if it.ID == "" || it.Quantity <= 0 {
			return nil, invalid("Each order item needs an id and a positive quantity")
		}
		order.OrderItems = append(order.OrderItems, backendOrderItem{
			Product:         it.ID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.Price,
		})
	}

	resp, err := s.call(ctx, http.MethodPost, "/api/orders/", nil, header, order)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return reply(resp.StatusCode, map[string]string{
			"error": errorMessage(resp.Body, "Failed to create order", "error"),
		}, nil)
	}
	resp.StatusCode = http.StatusCreated
	return resp, nil
}

// OrderHistory lists a customer's past orders.
func (s *Storefront) OrderHistory(ctx context.Context, header http.Header, userID string) (*model.ForwardedResponse, error) {
	if userID == "" {
		return nil, invalid("User ID is required")
	}

	resp, err := s.call(ctx, http.MethodGet, "/api/orders/history/", url.Values{"user": {userID}}, header, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return reply(resp.StatusCode, map[string]string{
			"error": errorMessage(resp.Body, "Failed to fetch order history", "error", "detail"),
		}, nil)
	}
	if string(resp.Body) == "null" {
		return reply(resp.StatusCode, map[string][]any{"orders": {}}, nil)
	}
	return resp, nil
}

// Profile fetches a customer profile.
func (s *Storefront) Profile(ctx context.Context, header http.Header, userID string) (*model.ForwardedResponse, error) {
	if userID == "" {
		return nil, invalid("User ID is required")
	}

	resp, err := s.call(ctx, http.MethodGet, "/api/user/profile/", url.Values{"user": {userID}}, header, nil)
	if err != nil {
		return nil, err
	}
	return failWith(resp, "Failed to fetch user profile", "error")
}

// UpdateProfile updates a customer profile. The caller's userId field is
// sent to the backend as user.
func (s *Storefront) UpdateProfile(ctx context.Context, header http.Header, fields map[string]any) (*model.ForwardedResponse, error) {
	userID, ok := fields["userId"]
	if !ok || userID == nil || userID == "" {
		return nil, invalid("User ID is required")
	}

	payload := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "userId" {
			payload[k] = v
		}
	}
	payload["user"] = userID

	resp, err := s.call(ctx, http.MethodPut, "/api/user/profile/", nil, header, payload)
	if err != nil {
		return nil, err
	}
	return failWith(resp, "Failed to update user profile", "error")
}

// Wishlist returns the caller's wishlist.
func (s *Storefront) Wishlist(ctx context.Context, header http.Header) (*model.ForwardedResponse, error) {
	resp, err := s.call(ctx, http.MethodGet, "/api/wishlist/", nil, header, nil)
	if err != nil {
		return nil, err
	}
	return failWith(resp, "Failed to fetch wishlist", "detail")
}

// AddToWishlist adds a product to the caller's wishlist.
func (s *Storefront) AddToWishlist(ctx context.Context, header http.Header, productID model.ID) (*model.ForwardedResponse, error) {
	path, err := wishlistPath("add", productID)
	if err != nil {
		return nil, err
	}
	resp, err := s.call(ctx, http.MethodPost, path, nil, header, nil)
	if err != nil {
		return nil, err
	}
	return failWith(resp, "Failed to add to wishlist", "detail")
}

// RemoveFromWishlist removes a product from the caller's wishlist.
func (s *Storefront) RemoveFromWishlist(ctx context.Context, header http.Header, productID model.ID) (*model.ForwardedResponse, error) {
	path, err := wishlistPath("remove", productID)
	if err != nil {
		return nil, err
	}
	resp, err := s.call(ctx, http.MethodDelete, path, nil, header, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return failWith(resp, "Failed to remove from wishlist", "detail")
	}
	return reply(http.StatusOK, map[string]string{"message": "Item removed from wishlist"}, resp.SetCookie)
}

// Reviews lists the reviews of a product.
func (s *Storefront) Reviews(ctx context.Context, header http.Header, productID string) (*model.ForwardedResponse, error) {
	path, err := JoinPath("/api/products", productID, "reviews")
	if err != nil {
		return nil, err
	}
	resp, err := s.call(ctx, http.MethodGet, path, nil, header, nil)
	if err != nil {
		return nil, err
	}
	return failWith(resp, "Failed to fetch reviews")
}

// SubmitReview posts a review; the caller must present an Authorization header.
func (s *Storefront) SubmitReview(ctx context.Context, header http.Header, productID string, review map[string]any) (*model.ForwardedResponse, error) {
	if header.Get("Authorization") == "" {
		return nil, &ValidationError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	path, err := JoinPath("/api/products", productID, "reviews")
	if err != nil {
		return nil, err
	}
	resp, err := s.call(ctx, http.MethodPost, path, nil, header, review)
	if err != nil {
		return nil, err
	}
	return failWith(resp, "Failed to submit review", "error")
}

// call issues one backend call carrying only the caller's credentials.
func (s *Storefront) call(ctx context.Context, method, path string, query url.Values, inbound http.Header, payload any) (*model.ForwardedResponse, error) {
	header := http.Header{
		"Accept":       {"application/json"},
		"Content-Type": {"application/json"},
	}
	for _, key := range credentialHeaders {
		if vals := inbound.Values(key); len(vals) > 0 {
			header[key] = vals
		}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	return s.forwarder.Forward(ctx, &model.ForwardedRequest{
		Method: method,
		Path:   path,
		Query:  query,
		Header: header,
		Body:   body,
	})
}

func wishlistPath(action string, productID model.ID) (string, error) {
	if productID == "" {
		return "", invalid("Product ID is required")
	}
	return JoinPath("/api/wishlist", action, string(productID))
}

// failWith passes successful replies through and rewrites failures into
// {"error": msg}, keeping the upstream status.
func failWith(resp *model.ForwardedResponse, fallback string, keys ...string) (*model.ForwardedResponse, error) {
	if resp.IsSuccess() {
		return resp, nil
	}
	return reply(resp.StatusCode, map[string]string{
		"error": errorMessage(resp.Body, fallback, keys...),
	}, nil)
}

func reply(status int, v any, setCookie []string) (*model.ForwardedResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return &model.ForwardedResponse{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        data,
		SetCookie:   setCookie,
	}, nil
}

// errorMessage returns the first non-empty string among keys in a JSON
// object body, or fallback.
func errorMessage(body json.RawMessage, fallback string, keys ...string) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return fallback
	}
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func userRole(user json.RawMessage) string {
	var u struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(user, &u); err != nil || u.Role == "" {
		return "user"
	}
	return u.Role
}
