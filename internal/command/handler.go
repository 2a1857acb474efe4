package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/domain/cart"
	"github.com/example/technest/internal/domain/checkout"
	"github.com/example/technest/internal/prompt"
	"github.com/example/technest/internal/query"
	"github.com/example/technest/internal/session"
	"github.com/example/technest/internal/validation"
)

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrEmptyComment  = errors.New("comment is required")
	ErrInvalidDelta  = errors.New("delta must be 1 or -1")
)

// Handler dispatches UI actions to a session's containers. Failures are
// pushed to the session's notifications and also returned.
type Handler struct {
	catalog backend.CatalogAPI
	queries *query.Handler
	log     logrus.FieldLogger
}

func NewHandler(catalog backend.CatalogAPI, queries *query.Handler, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{catalog: catalog, queries: queries, log: log}
}

// fail reports err to the session. Prompts waiting for an answer and
// declined prompts are not failures the user needs to be told about.
func (h *Handler) fail(sf *session.Storefront, err error) error {
	if err == nil || errors.Is(err, prompt.ErrUnanswered) || errors.Is(err, checkout.ErrPromptDeclined) {
		return err
	}
	sf.Notices.Error(err)
	return err
}

// Cart

// AddToCart adds the product with the catalog's current name, price and image.
func (h *Handler) AddToCart(ctx context.Context, sf *session.Storefront, cmd AddToCart) (cart.Cart, error) {
	if cmd.Quantity == 0 {
		cmd.Quantity = 1
	}
	p, err := h.queries.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return sf.Cart.Snapshot(), h.fail(sf, err)
	}

	c, err := sf.Cart.AddItem(ctx, cart.LineItem{
		ProductID: p.ID,
		Snapshot:  &cart.Snapshot{Name: p.Name, Price: p.Price, Image: p.Image},
	}, cmd.Quantity)
	if err != nil {
		return c, h.fail(sf, err)
	}
	sf.Notices.Success(fmt.Sprintf("%s added to cart", p.Name))
	return c, nil
}

func (h *Handler) RemoveFromCart(ctx context.Context, sf *session.Storefront, cmd RemoveFromCart) (cart.Cart, error) {
	c, err := sf.Cart.RemoveItem(ctx, cmd.ProductID)
	return c, h.fail(sf, err)
}

func (h *Handler) ChangeQuantity(ctx context.Context, sf *session.Storefront, cmd ChangeQuantity) (cart.Cart, error) {
	var (
		c   cart.Cart
		err error
	)
	switch cmd.Delta {
	case 1:
		c, err = sf.Cart.IncrementQuantity(ctx, cmd.ProductID)
	case -1:
		c, err = sf.Cart.DecrementQuantity(ctx, cmd.ProductID)
	default:
		return sf.Cart.Snapshot(), ErrInvalidDelta
	}
	return c, h.fail(sf, err)
}

func (h *Handler) ClearCart(ctx context.Context, sf *session.Storefront, _ ClearCart) (cart.Cart, error) {
	c, err := sf.Cart.ClearCart(ctx)
	return c, h.fail(sf, err)
}

// Checkout

func (h *Handler) SubmitShipping(ctx context.Context, sf *session.Storefront, cmd SubmitShipping) (checkout.Session, error) {
	s, err := sf.Checkout.SubmitShipping(ctx, cmd.ShippingAddress, checkout.PaymentMethod(cmd.PaymentMethod))
	return s, h.fail(sf, err)
}

func (h *Handler) RedirectToPayment(ctx context.Context, sf *session.Storefront, cmd RedirectToPayment) (string, error) {
	url, err := sf.Checkout.Redirect(ctx, prompt.FromAnswer(cmd.Confirm))
	return url, h.fail(sf, err)
}

func (h *Handler) VerifyPayment(ctx context.Context, sf *session.Storefront, _ VerifyPayment) (*backend.CheckoutRecord, error) {
	record, err := sf.Checkout.VerifyPayment(ctx)
	if err != nil {
		return nil, h.fail(sf, err)
	}
	if err := sf.ClearBillingForm(ctx); err != nil {
		h.log.WithError(err).WithField("session_id", sf.ID).Warn("failed to clear billing form")
	}
	sf.Notices.Success("Payment verified. Thank you for your order!")
	return record, nil
}

func (h *Handler) ResumePayment(ctx context.Context, sf *session.Storefront, cmd ResumePayment) (checkout.Session, error) {
	s, err := sf.Checkout.ResumePayment(ctx, cmd.RecordID)
	return s, h.fail(sf, err)
}

func (h *Handler) CancelCheckout(ctx context.Context, sf *session.Storefront, cmd CancelCheckout) error {
	if err := sf.Checkout.CancelCheckout(ctx, cmd.RecordID, prompt.FromAnswer(cmd.Confirm)); err != nil {
		return h.fail(sf, err)
	}
	sf.Notices.Success("Order cancelled")
	return nil
}

func (h *Handler) RestartCheckout(_ context.Context, sf *session.Storefront, _ RestartCheckout) checkout.Session {
	return sf.Checkout.Restart()
}

// SaveBillingForm persists the form and returns its per-field validation.
func (h *Handler) SaveBillingForm(ctx context.Context, sf *session.Storefront, cmd SaveBillingForm) (validation.Errors, error) {
	errs, err := sf.SaveBillingForm(ctx, cmd.Form)
	return errs, h.fail(sf, err)
}

// Wishlist

func (h *Handler) AddToWishlist(ctx context.Context, sf *session.Storefront, cmd AddToWishlist) ([]backend.Product, error) {
	p, err := h.queries.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return sf.Wishlist.Items(), h.fail(sf, err)
	}
	items, err := sf.Wishlist.Add(ctx, p)
	return items, h.fail(sf, err)
}

func (h *Handler) RemoveFromWishlist(ctx context.Context, sf *session.Storefront, cmd RemoveFromWishlist) ([]backend.Product, error) {
	items, err := sf.Wishlist.Remove(ctx, cmd.ProductID)
	return items, h.fail(sf, err)
}

// Reviews

func (h *Handler) PostReview(ctx context.Context, sf *session.Storefront, cmd PostReview) (*backend.Review, error) {
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return nil, ErrInvalidRating
	}
	comment := strings.TrimSpace(cmd.Comment)
	if comment == "" {
		return nil, ErrEmptyComment
	}
	review, err := h.catalog.PostProductReview(ctx, cmd.ProductID, cmd.Rating, comment)
	if err != nil {
		return nil, h.fail(sf, fmt.Errorf("failed to post review: %w", err))
	}
	sf.Notices.Success("Thanks for your review!")
	return review, nil
}
