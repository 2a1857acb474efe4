package mocks

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/example/technest/internal/backend"
)

// MockBackend is an in-memory implementation of every backend contract for
// tests. Checkout records are created pending on initialization and completed
// on verification, like the real payment flow.
type MockBackend struct {
	mu       sync.Mutex
	products []backend.Product
	cart     []backend.CartLine
	wishlist []string
	records  []backend.CheckoutRecord // oldest first
	reviews  map[string][]backend.Review
	seq      int

	// Injected failures
	CartErr     error
	InitErr     error
	VerifyErr   error
	CancelErr   error
	WishlistErr error
	CatalogErr  error

	// Calls counts invocations by operation name
	Calls map[string]int
}

func NewMockBackend(products ...backend.Product) *MockBackend {
	return &MockBackend{
		products: products,
		reviews:  make(map[string][]backend.Review),
		Calls:    make(map[string]int),
	}
}

// Backend returns the mock as every strategy.
func (m *MockBackend) Backend() backend.Backend {
	return backend.Backend{Cart: m, Checkout: m, Wishlist: m, Catalog: m}
}

func (m *MockBackend) call(op string) {
	m.Calls[op]++
}

// CallCount returns how often op was invoked.
func (m *MockBackend) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[op]
}

func (m *MockBackend) product(id string) backend.Product {
	for _, p := range m.products {
		if p.ID == id {
			return p
		}
	}
	return backend.Product{ID: id}
}

// AddRecord seeds a checkout record.
func (m *MockBackend) AddRecord(r backend.CheckoutRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

func notFound(what string) error {
	return &backend.APIError{StatusCode: http.StatusNotFound, Message: what + " not found"}
}

func (m *MockBackend) GetCart(ctx context.Context) (*backend.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("GetCart")
	if m.CartErr != nil {
		return nil, m.CartErr
	}
	out := &backend.Cart{Products: make([]backend.CartLine, 0, len(m.cart))}
	for _, line := range m.cart {
		line.Product = m.product(line.Product.ID)
		out.Products = append(out.Products, line)
		out.TotalPrice += line.Product.Price * int64(line.Quantity)
	}
	return out, nil
}

func (m *MockBackend) AddToCart(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("AddToCart")
	if m.CartErr != nil {
		return m.CartErr
	}
	for i := range m.cart {
		if m.cart[i].Product.ID == productID {
			m.cart[i].Quantity += quantity
			return nil
		}
	}
	m.cart = append(m.cart, backend.CartLine{Product: backend.Product{ID: productID}, Quantity: quantity})
	return nil
}

func (m *MockBackend) UpdateCartQuantity(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("UpdateCartQuantity")
	if m.CartErr != nil {
		return m.CartErr
	}
	for i := range m.cart {
		if m.cart[i].Product.ID == productID {
			m.cart[i].Quantity = quantity
			return nil
		}
	}
	return notFound("cart item")
}

func (m *MockBackend) DeleteCartItem(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DeleteCartItem")
	if m.CartErr != nil {
		return m.CartErr
	}
	for i := range m.cart {
		if m.cart[i].Product.ID == productID {
			m.cart = append(m.cart[:i], m.cart[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockBackend) ClearCart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("ClearCart")
	if m.CartErr != nil {
		return m.CartErr
	}
	m.cart = nil
	return nil
}

func (m *MockBackend) InitializeCheckout(ctx context.Context, shippingAddress, paymentMethod string) (*backend.CheckoutInit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("InitializeCheckout")
	if m.InitErr != nil {
		return nil, m.InitErr
	}

	m.seq++
	ref := fmt.Sprintf("ref-%d", m.seq)
	record := backend.CheckoutRecord{
		ID:               fmt.Sprintf("order-%d", m.seq),
		Status:           backend.CheckoutPending,
		PaymentMethod:    paymentMethod,
		PaymentReference: ref,
		ShippingAddress:  shippingAddress,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	for _, line := range m.cart {
		line.Product = m.product(line.Product.ID)
		record.Cart = append(record.Cart, line)
		record.TotalPrice += line.Product.Price * int64(line.Quantity)
	}
	m.records = append(m.records, record)

	result := &backend.CheckoutInit{Reference: ref}
	if paymentMethod == "paystack" {
		result.AuthorizationURL = "https://checkout.example/pay/" + ref
	}
	return result, nil
}

func (m *MockBackend) VerifyPayment(ctx context.Context, reference string) (*backend.CheckoutRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("VerifyPayment")
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	for i := range m.records {
		if m.records[i].PaymentReference != reference {
			continue
		}
		if m.records[i].Status != backend.CheckoutPending {
			return nil, &backend.APIError{StatusCode: http.StatusGone, Message: "Reference already used"}
		}
		m.records[i].Status = backend.CheckoutCompleted
		m.records[i].UpdatedAt = time.Now()
		m.cart = nil
		record := m.records[i]
		return &record, nil
	}
	return nil, notFound("reference")
}

func (m *MockBackend) GetCheckoutHistory(ctx context.Context) ([]backend.CheckoutRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("GetCheckoutHistory")
	if m.CatalogErr != nil {
		return nil, m.CatalogErr
	}
	out := make([]backend.CheckoutRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MockBackend) CancelCheckout(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("CancelCheckout")
	if m.CancelErr != nil {
		return m.CancelErr
	}
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Status = backend.CheckoutCancelled
			return nil
		}
	}
	return notFound("checkout")
}

func (m *MockBackend) GetWishlist(ctx context.Context) ([]backend.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("GetWishlist")
	if m.WishlistErr != nil {
		return nil, m.WishlistErr
	}
	out := make([]backend.Product, 0, len(m.wishlist))
	for _, id := range m.wishlist {
		out = append(out, m.product(id))
	}
	return out, nil
}

func (m *MockBackend) AddToWishlist(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("AddToWishlist")
	if m.WishlistErr != nil {
		return m.WishlistErr
	}
	for _, id := range m.wishlist {
		if id == productID {
			return nil
		}
	}
	m.wishlist = append(m.wishlist, productID)
	return nil
}

func (m *MockBackend) RemoveFromWishlist(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("RemoveFromWishlist")
	if m.WishlistErr != nil {
		return m.WishlistErr
	}
	for i, id := range m.wishlist {
		if id == productID {
			m.wishlist = append(m.wishlist[:i], m.wishlist[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockBackend) GetProducts(ctx context.Context) ([]backend.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("GetProducts")
	if m.CatalogErr != nil {
		return nil, m.CatalogErr
	}
	return append([]backend.Product(nil), m.products...), nil
}

func (m *MockBackend) GetProductReviews(ctx context.Context, productID string) ([]backend.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("GetProductReviews")
	if m.CatalogErr != nil {
		return nil, m.CatalogErr
	}
	return append([]backend.Review{}, m.reviews[productID]...), nil
}

func (m *MockBackend) PostProductReview(ctx context.Context, productID string, rating int, comment string) (*backend.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("PostProductReview")
	if m.CatalogErr != nil {
		return nil, m.CatalogErr
	}
	m.seq++
	review := backend.Review{
		ID:        fmt.Sprintf("review-%d", m.seq),
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now(),
	}
	m.reviews[productID] = append(m.reviews[productID], review)
	return &review, nil
}
