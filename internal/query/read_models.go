package query

import (
	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/domain/cart"
)

// CartView is the cart as the UI renders it.
type CartView struct {
	Items          []CartItemView `json:"items"`
	TotalQuantity  int            `json:"totalQuantity"`
	TotalPrice     int64          `json:"totalPrice"`
	FormattedTotal string         `json:"formattedTotal"`
}

type CartItemView struct {
	cart.LineItem
	FormattedPrice string `json:"formattedPrice,omitempty"`
}

// OrderView is a checkout record with display prices.
type OrderView struct {
	backend.CheckoutRecord
	FormattedTotal string `json:"formattedTotal"`
}

type ProductView struct {
	backend.Product
	FormattedPrice string `json:"formattedPrice"`
	InWishlist     bool   `json:"inWishlist"`
}
