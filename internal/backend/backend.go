package backend

import (
	"context"
	"time"
)

// Product is the catalog entry as the backend returns it.
type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       int64   `json:"price"`
	Image       string  `json:"image,omitempty"`
	Category    string  `json:"category,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Stock       int     `json:"stock,omitempty"`
}

// CartLine is one product/quantity pair of the remote cart.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Cart is the remote cart document.
type Cart struct {
	Products   []CartLine `json:"products"`
	TotalPrice int64      `json:"totalPrice"`
}

// CheckoutInit is the result of initializing a checkout.
// AuthorizationURL is only set for redirect-based processors.
type CheckoutInit struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl,omitempty"`
}

// CheckoutStatus is the server-side lifecycle state of a checkout record.
type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "pending"
	CheckoutCompleted CheckoutStatus = "completed"
	CheckoutCancelled CheckoutStatus = "cancelled"
	CheckoutFailed    CheckoutStatus = "failed"
)

// CheckoutRecord is a read-only order history entry.
type CheckoutRecord struct {
	ID               string         `json:"_id"`
	Status           CheckoutStatus `json:"status"`
	Cart             []CartLine     `json:"cart"`
	TotalPrice       int64          `json:"totalPrice"`
	PaymentMethod    string         `json:"paymentMethod"`
	PaymentReference string         `json:"paymentReference"`
	ShippingAddress  string         `json:"shippingAddress"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Review is a product review.
type Review struct {
	ID        string    `json:"_id,omitempty"`
	ProductID string    `json:"productId"`
	User      string    `json:"user,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// CartAPI is the remote cart contract.
type CartAPI interface {
	GetCart(ctx context.Context) (*Cart, error)
	AddToCart(ctx context.Context, productID string, quantity int) error
	UpdateCartQuantity(ctx context.Context, productID string, quantity int) error
	DeleteCartItem(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
}

// CheckoutAPI is the payment/checkout contract.
type CheckoutAPI interface {
	InitializeCheckout(ctx context.Context, shippingAddress, paymentMethod string) (*CheckoutInit, error)
	VerifyPayment(ctx context.Context, reference string) (*CheckoutRecord, error)
	GetCheckoutHistory(ctx context.Context) ([]CheckoutRecord, error)
	CancelCheckout(ctx context.Context, id string) error
}

// WishlistAPI is the wishlist contract.
type WishlistAPI interface {
	GetWishlist(ctx context.Context) ([]Product, error)
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, productID string) error
}

// CatalogAPI is the product and review contract.
type CatalogAPI interface {
	GetProducts(ctx context.Context) ([]Product, error)
	GetProductReviews(ctx context.Context, productID string) ([]Review, error)
	PostProductReview(ctx context.Context, productID string, rating int, comment string) (*Review, error)
}

// Backend bundles the strategies the storefront talks to. Each field may be
// served by a different concrete store.
type Backend struct {
	Cart     CartAPI
	Checkout CheckoutAPI
	Wishlist WishlistAPI
	Catalog  CatalogAPI
}

type tokenKey struct{}

// WithToken attaches the caller's backend bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token set by WithToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type userKey struct{}

// WithUser attaches the backend user id to ctx. Document-store strategies
// key their documents by it.
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the user id set by WithUser.
func UserFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}
