package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// forwardedMethods are the methods the admin pass-through accepts.
var forwardedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(
	e *echo.Echo,
	admin *AdminHandler,
	store *StorefrontHandler,
	carts *CartHandler,
	health *HealthHandler,
) {
	e.GET("/healthz", health.Healthz)
	e.GET("/gateway/status", health.Status)

	// Static and param routes take priority over the wildcard.
	e.Match(forwardedMethods, "/api/admin/categories", admin.Categories)
	e.Match(forwardedMethods, "/api/admin/categories/:id", admin.Category)
	e.Match(forwardedMethods, "/api/admin/*", admin.CatchAll)

	e.POST("/api/auth/login", store.Login)
	e.POST("/api/orders", store.PlaceOrder)
	e.GET("/api/orders/history", store.OrderHistory)
	e.GET("/api/user/profile", store.Profile)
	e.PUT("/api/user/profile", store.UpdateProfile)
	e.GET("/api/wishlist", store.Wishlist)
	e.POST("/api/wishlist", store.AddToWishlist)
	e.DELETE("/api/wishlist", store.RemoveFromWishlist)
	e.GET("/api/products/:id/reviews", store.Reviews)
	e.POST("/api/products/:id/reviews", store.SubmitReview)

	e.GET("/api/cart", carts.Get)
	e.DELETE("/api/cart", carts.Clear)
	e.POST("/api/cart/items", carts.AddItem)
	e.PUT("/api/cart/items/:productId", carts.SetQuantity)
	e.DELETE("/api/cart/items/:productId", carts.RemoveItem)
	e.GET("/api/cart/quote", carts.Quote)
	e.POST("/api/cart/checkout", carts.Checkout)
}
