package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"storefront-gateway/internal/cart"
	"storefront-gateway/internal/config"
	"storefront-gateway/internal/model"
	"storefront-gateway/internal/service"
)

// CartHandler serves the server-side cart. The cart id travels in an
// HttpOnly cookie.
type CartHandler struct {
	store      cart.Store
	rules      cart.Rules
	storefront *service.Storefront
	relay      *Relay
	logger     *slog.Logger
	cookieName string
	ttl        time.Duration
}

// NewCartHandler creates a CartHandler.
func NewCartHandler(cfg *config.Config, store cart.Store, sf *service.Storefront, relay *Relay, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		store:      store,
		rules:      cart.RulesFromConfig(cfg),
		storefront: sf,
		relay:      relay,
		logger:     logger.With("component", "cart_handler"),
		cookieName: cfg.Cart.CookieName,
		ttl:        cfg.Cart.TTL(),
	}
}

type addItemRequest struct {
	ProductID model.ID `json:"product_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type checkoutRequest struct {
	DeliveryAddress string `json:"delivery_address"`
	ShippingMethod  string `json:"shipping_method"`
}

// cartView is a cart together with its standard-shipping quote.
type cartView struct {
	*cart.Cart
	Quote *cart.Quote `json:"quote"`
}

// Get handles GET /api/cart. A caller without a cart sees an empty one.
func (h *CartHandler) Get(c echo.Context) error {
	crt, err := h.load(c)
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return h.view(c, http.StatusOK, crt)
}

// AddItem handles POST /api/cart/items. Quantity defaults to 1.
func (h *CartHandler) AddItem(c echo.Context) error {
	var req addItemRequest
	if err := bindJSON(c, &req); err != nil {
		return h.relay.Fail(c, err)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	crt, err := h.store.Update(c.Request().Context(), h.session(c), func(crt *cart.Cart) error {
		return crt.Add(cart.Item{
			ProductID: req.ProductID,
			Name:      req.Name,
			Quantity:  req.Quantity,
			Price:     req.Price,
		})
	})
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return h.view(c, http.StatusOK, crt)
}

// SetQuantity handles PUT /api/cart/items/:productId. Zero removes the line.
func (h *CartHandler) SetQuantity(c echo.Context) error {
	var req setQuantityRequest
	if err := bindJSON(c, &req); err != nil {
		return h.relay.Fail(c, err)
	}
	if req.Quantity == nil {
		return h.relay.Fail(c, &service.ValidationError{Message: "Quantity is required"})
	}

	id := model.ID(c.Param("productId"))
	crt, err := h.store.Update(c.Request().Context(), h.session(c), func(crt *cart.Cart) error {
		return crt.SetQuantity(id, *req.Quantity)
	})
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return h.view(c, http.StatusOK, crt)
}

// RemoveItem handles DELETE /api/cart/items/:productId.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	id := model.ID(c.Param("productId"))
	crt, err := h.store.Update(c.Request().Context(), h.session(c), func(crt *cart.Cart) error {
		return crt.Remove(id)
	})
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return h.view(c, http.StatusOK, crt)
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(c echo.Context) error {
	if id, ok := h.cookieID(c); ok {
		if err := h.store.Clear(c.Request().Context(), id); err != nil {
			return h.relay.Fail(c, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Quote handles GET /api/cart/quote?shipping=standard|express.
func (h *CartHandler) Quote(c echo.Context) error {
	crt, err := h.load(c)
	if err != nil {
		return h.relay.Fail(c, err)
	}
	q, err := h.rules.Quote(crt.Items, c.QueryParam("shipping"))
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Checkout handles POST /api/cart/checkout. It places the order for the
// quoted cart and clears the cart once the backend accepts it. A rejected
// order leaves the cart intact and relays the backend reply.
func (h *CartHandler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := bindJSON(c, &req); err != nil {
		return h.relay.Fail(c, err)
	}

	crt, err := h.load(c)
	if err != nil {
		return h.relay.Fail(c, err)
	}
	if crt.Empty() {
		return h.relay.Fail(c, cart.ErrEmptyCart)
	}

	q, err := h.rules.Quote(crt.Items, req.ShippingMethod)
	if err != nil {
		return h.relay.Fail(c, err)
	}

	order := service.OrderRequest{
		DeliveryAddress: req.DeliveryAddress,
		Items:           make([]service.OrderLine, 0, len(crt.Items)),
		Total:           q.Total.Float(),
	}
	for _, it := range crt.Items {
		order.Items = append(order.Items, service.OrderLine{
			ID:       it.ProductID,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}

	ctx := c.Request().Context()
	resp, err := h.storefront.PlaceOrder(ctx, c.Request().Header, order)
	if err != nil {
		return h.relay.Fail(c, err)
	}
	if !resp.IsSuccess() {
		return h.relay.Send(c, resp)
	}

	if err := h.store.Clear(ctx, crt.ID); err != nil {
		h.logger.Error("clear cart after checkout", "err", err, "cart_id", crt.ID)
	}
	h.logger.Info("order placed from cart",
		"cart_id", crt.ID,
		"items", len(crt.Items),
		"total", q.Total.Float(),
	)

	for _, v := range resp.SetCookie {
		c.Response().Header().Add(echo.HeaderSetCookie, v)
	}
	return c.JSON(resp.StatusCode, map[string]any{
		"order": json.RawMessage(resp.Body),
		"quote": q,
	})
}

// load returns the caller's cart, or an unsaved empty one.
func (h *CartHandler) load(c echo.Context) (*cart.Cart, error) {
	id, ok := h.cookieID(c)
	if !ok {
		return cart.New(""), nil
	}
	crt, err := h.store.Get(c.Request().Context(), id)
	if errors.Is(err, cart.ErrNotFound) {
		return cart.New(id), nil
	}
	return crt, err
}

// cookieID returns the cart id from the request cookie, if it is a valid UUID.
func (h *CartHandler) cookieID(c echo.Context) (string, bool) {
	ck, err := c.Cookie(h.cookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(ck.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// session returns the caller's cart id, issuing a new one when absent.
// The cookie is refreshed on every write so its lifetime tracks the cart's.
func (h *CartHandler) session(c echo.Context) string {
	id, ok := h.cookieID(c)
	if !ok {
		id = uuid.NewString()
	}
	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (h *CartHandler) view(c echo.Context, status int, crt *cart.Cart) error {
	q, err := h.rules.Quote(crt.Items, cart.ShippingStandard)
	if err != nil {
		return h.relay.Fail(c, err)
	}
	return c.JSON(status, cartView{Cart: crt, Quote: q})
}
