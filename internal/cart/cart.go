// Package cart holds server-side shopping carts and their pricing.
package cart

import (
	"errors"
	"time"

	"storefront-gateway/internal/model"
)

var (
	// ErrNotFound is returned when no live cart exists for an id.
	ErrNotFound = errors.New("cart not found")
	// ErrInvalidItem is returned for lines without a product, with a quantity
	// outside 1..MaxQuantity or a price outside 0..MaxPrice.
	ErrInvalidItem = errors.New("cart item needs a product id, a quantity between 1 and 9999 and a price up to 1000000")
	// ErrItemNotInCart is returned when changing a line the cart does not hold.
	ErrItemNotInCart = errors.New("item not in cart")
	// ErrEmptyCart is returned when checking out a cart without items.
	ErrEmptyCart = errors.New("cart is empty")
)

// Line limits. They keep every line total well inside the range of Cents.
const (
	MaxQuantity = 9999
	MaxPrice    = 1_000_000
)

// Item is one cart line. Price is the unit price captured when the item was added.
type Item struct {
	ProductID model.ID `json:"product_id"`
	Name      string   `json:"name,omitempty"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
}

// Cart is an ordered list of lines keyed by product.
type Cart struct {
	ID        string    `json:"id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty cart.
func New(id string) *Cart {
	return &Cart{ID: id, Items: []Item{}}
}

// Add appends item, or merges its quantity into an existing line for the
// same product. The line keeps its original price snapshot.
func (c *Cart) Add(item Item) error {
	if item.ProductID == "" || item.Quantity <= 0 || item.Quantity > MaxQuantity ||
		item.Price < 0 || item.Price > MaxPrice {
		return ErrInvalidItem
	}
	if i := c.index(item.ProductID); i >= 0 {
		if c.Items[i].Quantity > MaxQuantity-item.Quantity {
			return ErrInvalidItem
		}
		c.Items[i].Quantity += item.Quantity
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity replaces a line's quantity. Zero or less removes the line.
func (c *Cart) SetQuantity(id model.ID, quantity int) error {
	i := c.index(id)
	if i < 0 {
		return ErrItemNotInCart
	}
	if quantity > MaxQuantity {
		return ErrInvalidItem
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	}
	c.Items[i].Quantity = quantity
	return nil
}

// Remove drops the line for id.
func (c *Cart) Remove(id model.ID) error {
	return c.SetQuantity(id, 0)
}

// Empty reports whether the cart holds no lines.
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = append([]Item{}, c.Items...)
	return &out
}

func (c *Cart) index(id model.ID) int {
	for i, it := range c.Items {
		if it.ProductID == id {
			return i
		}
	}
	return -1
}
