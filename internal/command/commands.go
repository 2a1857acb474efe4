package command

import "github.com/example/technest/internal/validation"

// Cart Commands
type AddToCart struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type RemoveFromCart struct {
	ProductID string `json:"productId"`
}

type ChangeQuantity struct {
	ProductID string `json:"productId"`
	Delta     int    `json:"delta"` // +1 or -1
}

type ClearCart struct{}

// Checkout Commands
type SubmitShipping struct {
	ShippingAddress string `json:"shippingAddress"`
	PaymentMethod   string `json:"paymentMethod"`
}

// Confirm answers the prompt shown before the side effect. Nil means the
// user has not been asked yet.
type RedirectToPayment struct {
	Confirm *bool `json:"confirm"`
}

type VerifyPayment struct{}

type ResumePayment struct {
	RecordID string `json:"recordId"`
}

type CancelCheckout struct {
	RecordID string `json:"recordId"`
	Confirm  *bool  `json:"confirm"`
}

type RestartCheckout struct{}

type SaveBillingForm struct {
	Form validation.BillingForm `json:"form"`
}

// Wishlist Commands
type AddToWishlist struct {
	ProductID string `json:"productId"`
}

type RemoveFromWishlist struct {
	ProductID string `json:"productId"`
}

// Review Commands
type PostReview struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}
