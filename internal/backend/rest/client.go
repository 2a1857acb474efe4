package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/technest/internal/backend"
)

// Client talks to the storefront's REST backend. It implements every
// backend contract.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreakerSettings replaces the circuit breaker settings.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = gobreaker.NewCircuitBreaker[[]byte](st) }
}

// NewClient creates a client for baseURL. timeout 0 leaves requests bounded
// only by their context.
func NewClient(baseURL string, timeout time.Duration, log logrus.FieldLogger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		log: log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](DefaultBreakerSettings(log))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultBreakerSettings opens after five consecutive failures and probes
// again after 30 seconds. Client errors (4xx) do not count as failures.
func DefaultBreakerSettings(log logrus.FieldLogger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "technest-backend",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *backend.APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		},
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do performs one request and returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s %s: %w", method, path, backend.ErrUnavailable)
	}
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := backend.TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &backend.APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
		}
		c.log.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}).
			Debug("backend request failed")
		return nil, apiErr
	}

	return raw, nil
}

// decode unmarshals raw into v, unwrapping a {"data": ...} envelope when present.
func decode(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		raw = env.Data
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func escape(id string) string {
	return url.PathEscape(id)
}

// Cart

func (c *Client) GetCart(ctx context.Context) (*backend.Cart, error) {
	raw, err := c.do(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}
	cart := &backend.Cart{}
	if err := decode(raw, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	_, err := c.do(ctx, http.MethodPost, "/cart", map[string]any{
		"productId": productID,
		"quantity":  quantity,
	})
	return err
}

func (c *Client) UpdateCartQuantity(ctx context.Context, productID string, quantity int) error {
	_, err := c.do(ctx, http.MethodPatch, "/cart/"+escape(productID), map[string]any{
		"quantity": quantity,
	})
	return err
}

func (c *Client) DeleteCartItem(ctx context.Context, productID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/"+escape(productID), nil)
	return err
}

func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart", nil)
	return err
}

// Checkout

func (c *Client) InitializeCheckout(ctx context.Context, shippingAddress, paymentMethod string) (*backend.CheckoutInit, error) {
	raw, err := c.do(ctx, http.MethodPost, "/checkout/initialize", map[string]string{
		"shippingAddress": shippingAddress,
		"paymentMethod":   paymentMethod,
	})
	if err != nil {
		return nil, err
	}
	result := &backend.CheckoutInit{}
	if err := decode(raw, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) VerifyPayment(ctx context.Context, reference string) (*backend.CheckoutRecord, error) {
	raw, err := c.do(ctx, http.MethodPost, "/checkout/verify", map[string]string{
		"reference": reference,
	})
	if err != nil {
		return nil, err
	}
	record := &backend.CheckoutRecord{}
	if err := decode(raw, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (c *Client) GetCheckoutHistory(ctx context.Context) ([]backend.CheckoutRecord, error) {
	raw, err := c.do(ctx, http.MethodGet, "/checkout/history", nil)
	if err != nil {
		return nil, err
	}
	var records []backend.CheckoutRecord
	if err := decode(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) CancelCheckout(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/checkout/"+escape(id)+"/cancel", nil)
	return err
}

// Wishlist

func (c *Client) GetWishlist(ctx context.Context) ([]backend.Product, error) {
	raw, err := c.do(ctx, http.MethodGet, "/wishlist", nil)
	if err != nil {
		return nil, err
	}
	var products []backend.Product
	if err := decode(raw, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	_, err := c.do(ctx, http.MethodPost, "/wishlist", map[string]string{"productId": productID})
	return err
}

func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/wishlist/"+escape(productID), nil)
	return err
}

// Catalog

func (c *Client) GetProducts(ctx context.Context) ([]backend.Product, error) {
	raw, err := c.do(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}
	var products []backend.Product
	if err := decode(raw, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetProductReviews(ctx context.Context, productID string) ([]backend.Review, error) {
	raw, err := c.do(ctx, http.MethodGet, "/products/"+escape(productID)+"/reviews", nil)
	if err != nil {
		return nil, err
	}
	var reviews []backend.Review
	if err := decode(raw, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (c *Client) PostProductReview(ctx context.Context, productID string, rating int, comment string) (*backend.Review, error) {
	raw, err := c.do(ctx, http.MethodPost, "/products/"+escape(productID)+"/reviews", map[string]any{
		"rating":  rating,
		"comment": comment,
	})
	if err != nil {
		return nil, err
	}
	review := &backend.Review{ProductID: productID, Rating: rating, Comment: comment}
	if err := decode(raw, review); err != nil {
		return nil, err
	}
	return review, nil
}

// Backend returns a backend.Backend served entirely by c.
func (c *Client) Backend() backend.Backend {
	return backend.Backend{Cart: c, Checkout: c, Wishlist: c, Catalog: c}
}
