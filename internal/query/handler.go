package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/domain/cart"
	"github.com/example/technest/internal/session"
	"github.com/example/technest/internal/validation"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// DefaultCatalogTTL is how long a fetched product listing is reused.
const DefaultCatalogTTL = time.Minute

type Handler struct {
	catalog backend.CatalogAPI
	prices  *validation.PriceFormatter
	ttl     time.Duration

	mu       sync.Mutex
	cached   []backend.Product
	fetched  time.Time
	now      func() time.Time
}

func NewHandler(catalog backend.CatalogAPI, prices *validation.PriceFormatter, ttl time.Duration) *Handler {
	if prices == nil {
		prices = validation.NewPriceFormatter(validation.DefaultLocale)
	}
	return &Handler{catalog: catalog, prices: prices, ttl: ttl, now: time.Now}
}

// Products

func (h *Handler) products(ctx context.Context) ([]backend.Product, error) {
	h.mu.Lock()
	if h.cached != nil && h.now().Sub(h.fetched) < h.ttl {
		products := h.cached
		h.mu.Unlock()
		return products, nil
	}
	h.mu.Unlock()

	products, err := h.catalog.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	h.mu.Lock()
	h.cached = products
	h.fetched = h.now()
	h.mu.Unlock()
	return products, nil
}

// ListProducts returns the catalog, marking products in the session's wishlist.
// sf may be nil.
func (h *Handler) ListProducts(ctx context.Context, sf *session.Storefront) ([]ProductView, error) {
	products, err := h.products(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{
			Product:        p,
			FormattedPrice: h.prices.Format(p.Price),
			InWishlist:     sf != nil && sf.Wishlist.Contains(p.ID),
		})
	}
	return views, nil
}

func (h *Handler) GetProduct(ctx context.Context, id string) (backend.Product, error) {
	products, err := h.products(ctx)
	if err != nil {
		return backend.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return backend.Product{}, ErrProductNotFound
}

func (h *Handler) ProductReviews(ctx context.Context, productID string) ([]backend.Review, error) {
	reviews, err := h.catalog.GetProductReviews(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// Cart
func (h *Handler) GetCart(sf *session.Storefront) CartView {
	return h.cartView(sf.Cart.Snapshot())
}

func (h *Handler) cartView(c cart.Cart) CartView {
	view := CartView{
		Items:          make([]CartItemView, 0, len(c.Items)),
		TotalQuantity:  c.TotalQuantity,
		TotalPrice:     c.TotalPrice,
		FormattedTotal: h.prices.Format(c.TotalPrice),
	}
	for _, item := range c.Items {
		iv := CartItemView{LineItem: item}
		if item.Snapshot != nil {
			iv.FormattedPrice = h.prices.Format(item.Snapshot.Price)
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

// CartView renders c the way GetCart does.
func (h *Handler) CartView(c cart.Cart) CartView {
	return h.cartView(c)
}

// Orders

// CheckoutHistory reloads the session's history from the backend.
func (h *Handler) CheckoutHistory(ctx context.Context, sf *session.Storefront) ([]OrderView, error) {
	records, err := sf.Checkout.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, 0, len(records))
	for _, r := range records {
		views = append(views, h.orderView(r))
	}
	return views, nil
}

// GetOrder looks the record up locally first and reloads history once when
// it is not known yet.
func (h *Handler) GetOrder(ctx context.Context, sf *session.Storefront, id string) (OrderView, error) {
	if r, ok := sf.Checkout.Record(id); ok {
		return h.orderView(r), nil
	}
	if _, err := sf.Checkout.LoadHistory(ctx); err != nil {
		return OrderView{}, err
	}
	if r, ok := sf.Checkout.Record(id); ok {
		return h.orderView(r), nil
	}
	return OrderView{}, ErrOrderNotFound
}

func (h *Handler) orderView(r backend.CheckoutRecord) OrderView {
	return OrderView{CheckoutRecord: r, FormattedTotal: h.prices.Format(r.TotalPrice)}
}

// OrderView renders r the way CheckoutHistory does.
func (h *Handler) OrderView(r backend.CheckoutRecord) OrderView {
	return h.orderView(r)
}

// Wishlist
func (h *Handler) GetWishlist(ctx context.Context, sf *session.Storefront) ([]backend.Product, error) {
	return sf.Wishlist.Load(ctx)
}
