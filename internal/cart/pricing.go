package cart

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"storefront-gateway/internal/config"
)

// ErrUnknownShipping is returned for a shipping method other than standard or express.
var ErrUnknownShipping = errors.New("unknown shipping method")

// Shipping methods offered at checkout.
const (
	ShippingStandard = "standard"
	ShippingExpress  = "express"
)

// Cents is a money amount in hundredths. It encodes to JSON as a decimal number.
type Cents int64

// ToCents rounds a decimal amount to the nearest cent.
func ToCents(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Float returns the amount in currency units.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// MarshalJSON encodes the amount with two decimals, e.g. 12.50.
func (c Cents) MarshalJSON() ([]byte, error) {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign, v = "-", -v
	}
	return []byte(sign + strconv.FormatInt(v/100, 10) + fmt.Sprintf(".%02d", v%100)), nil
}

// Rules are the checkout pricing rules.
type Rules struct {
	TaxRate               float64
	FreeShippingThreshold Cents
	StandardShipping      Cents
	ExpressShipping       Cents
}

// RulesFromConfig converts the cart pricing settings into Rules.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		TaxRate:               cfg.Cart.TaxRate,
		FreeShippingThreshold: ToCents(cfg.Cart.FreeShippingThreshold),
		StandardShipping:      ToCents(cfg.Cart.StandardShipping),
		ExpressShipping:       ToCents(cfg.Cart.ExpressShipping),
	}
}

// QuoteLine is a priced cart line.
type QuoteLine struct {
	Item
	LineTotal Cents `json:"line_total"`
}

// Quote is the price breakdown of a cart.
type Quote struct {
	Items    []QuoteLine `json:"items"`
	Method   string      `json:"shipping_method"`
	Subtotal Cents       `json:"subtotal"`
	Shipping Cents       `json:"shipping"`
	Tax      Cents       `json:"tax"`
	Total    Cents       `json:"total"`
}

// Quote prices items for a shipping method; an empty method means standard.
// Standard shipping is free once the subtotal exceeds the threshold. An
// empty cart ships free.
func (r Rules) Quote(items []Item, method string) (*Quote, error) {
	if method == "" {
		method = ShippingStandard
	}

	q := &Quote{Items: make([]QuoteLine, 0, len(items)), Method: method}
	for _, it := range items {
		line := ToCents(it.Price) * Cents(it.Quantity)
		q.Items = append(q.Items, QuoteLine{Item: it, LineTotal: line})
		q.Subtotal += line
	}

	switch method {
	case ShippingStandard:
		if q.Subtotal <= r.FreeShippingThreshold {
			q.Shipping = r.StandardShipping
		}
	case ShippingExpress:
		q.Shipping = r.ExpressShipping
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShipping, method)
	}
	if len(items) == 0 {
		q.Shipping = 0
	}

	q.Tax = Cents(math.Round(float64(q.Subtotal) * r.TaxRate))
	q.Total = q.Subtotal + q.Shipping + q.Tax
	return q, nil
}
