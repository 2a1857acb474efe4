package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/backend/mocks"
	"github.com/example/technest/internal/domain/checkout"
	"github.com/example/technest/internal/infrastructure/store"
	storemocks "github.com/example/technest/internal/infrastructure/store/mocks"
	"github.com/example/technest/internal/logging"
	"github.com/example/technest/internal/notify"
	"github.com/example/technest/internal/prompt"
	"github.com/example/technest/internal/query"
	"github.com/example/technest/internal/session"
	"github.com/example/technest/internal/validation"
)

var catalog = []backend.Product{
	{ID: "p1", Name: "USB-C Cable", Price: 1500},
	{ID: "p2", Name: "Charger", Price: 4500},
}

func newTestHandler() (*Handler, *session.Storefront, *mocks.MockBackend) {
	be := mocks.NewMockBackend(catalog...)
	sf := session.New("s1", session.Dependencies{
		Backend:           be.Backend(),
		State:             store.NewMemoryStateStore(),
		Events:            storemocks.NewMockEventStore(),
		Log:               logging.Discard(),
		RemoteCart:        true,
		ConfirmationDelay: -1,
	})
	queries := query.NewHandler(be, nil, time.Minute)
	return NewHandler(be, queries, logging.Discard()), sf, be
}

func yes() *bool {
	v := true
	return &v
}

func lastNotice(t *testing.T, sf *session.Storefront) notify.Notification {
	t.Helper()
	list := sf.Notices.List()
	require.NotEmpty(t, list)
	return list[len(list)-1]
}

// ============================================
// Cart Command Tests
// ============================================

func TestHandler_AddToCart_UsesCatalogSnapshot(t *testing.T) {
	handler, sf, be := newTestHandler()
	ctx := context.Background()

	c, err := handler.AddToCart(ctx, sf, AddToCart{ProductID: "p2"})

	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Charger", c.Items[0].Snapshot.Name)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, int64(4500), c.TotalPrice)
	assert.Equal(t, 1, be.CallCount("AddToCart"))
	assert.Equal(t, notify.LevelSuccess, lastNotice(t, sf).Level)
}

func TestHandler_AddToCart_UnknownProduct(t *testing.T) {
	handler, sf, be := newTestHandler()

	_, err := handler.AddToCart(context.Background(), sf, AddToCart{ProductID: "nope", Quantity: 1})

	assert.ErrorIs(t, err, query.ErrProductNotFound)
	assert.Zero(t, be.CallCount("AddToCart"))
	assert.Equal(t, notify.LevelError, lastNotice(t, sf).Level)
}

func TestHandler_AddToCart_SyncFailureNotified(t *testing.T) {
	handler, sf, be := newTestHandler()
	be.CartErr = &backend.APIError{StatusCode: 500, Message: "Cart locked"}

	c, err := handler.AddToCart(context.Background(), sf, AddToCart{ProductID: "p1", Quantity: 2})

	require.Error(t, err)
	assert.Equal(t, 2, c.TotalQuantity)
	assert.Equal(t, "Cart locked", lastNotice(t, sf).Message)
}

func TestHandler_ChangeQuantity(t *testing.T) {
	handler, sf, _ := newTestHandler()
	ctx := context.Background()
	_, err := handler.AddToCart(ctx, sf, AddToCart{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	c, err := handler.ChangeQuantity(ctx, sf, ChangeQuantity{ProductID: "p1", Delta: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalQuantity)

	c, err = handler.ChangeQuantity(ctx, sf, ChangeQuantity{ProductID: "p1", Delta: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalQuantity)

	_, err = handler.ChangeQuantity(ctx, sf, ChangeQuantity{ProductID: "p1", Delta: 3})
	assert.ErrorIs(t, err, ErrInvalidDelta)
}

func TestHandler_RemoveAndClear(t *testing.T) {
	handler, sf, be := newTestHandler()
	ctx := context.Background()
	_, err := handler.AddToCart(ctx, sf, AddToCart{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = handler.AddToCart(ctx, sf, AddToCart{ProductID: "p2", Quantity: 1})
	require.NoError(t, err)

	c, err := handler.RemoveFromCart(ctx, sf, RemoveFromCart{ProductID: "p1"})
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)

	c, err = handler.ClearCart(ctx, sf, ClearCart{})
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, 1, be.CallCount("ClearCart"))
}

// ============================================
// Checkout Command Tests
// ============================================

func TestHandler_CheckoutFlow(t *testing.T) {
	handler, sf, _ := newTestHandler()
	ctx := context.Background()
	_, err := handler.AddToCart(ctx, sf, AddToCart{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	_, err = handler.SaveBillingForm(ctx, sf, SaveBillingForm{Form: validation.BillingForm{FirstName: "Ada"}})
	require.NoError(t, err)

	s, err := handler.SubmitShipping(ctx, sf, SubmitShipping{ShippingAddress: "1 Main St", PaymentMethod: "paystack"})
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPayment, s.Step)

	_, err = handler.RedirectToPayment(ctx, sf, RedirectToPayment{})
	assert.ErrorIs(t, err, prompt.ErrUnanswered)

	url, err := handler.RedirectToPayment(ctx, sf, RedirectToPayment{Confirm: yes()})
	require.NoError(t, err)
	assert.Contains(t, url, s.PaymentReference)

	record, err := handler.VerifyPayment(ctx, sf, VerifyPayment{})
	require.NoError(t, err)
	sf.Checkout.Wait()
	assert.Equal(t, int64(3000), record.TotalPrice)
	assert.Equal(t, notify.LevelSuccess, lastNotice(t, sf).Level)

	form, err := sf.BillingForm(ctx)
	require.NoError(t, err)
	assert.Empty(t, form.FirstName)
}

func TestHandler_VerifyWithoutReference(t *testing.T) {
	handler, sf, be := newTestHandler()

	_, err := handler.VerifyPayment(context.Background(), sf, VerifyPayment{})

	assert.ErrorIs(t, err, checkout.ErrMissingReference)
	assert.Zero(t, be.CallCount("VerifyPayment"))
	assert.Equal(t, notify.LevelError, lastNotice(t, sf).Level)
}

func TestHandler_CancelCheckout(t *testing.T) {
	handler, sf, be := newTestHandler()
	ctx := context.Background()
	be.AddRecord(backend.CheckoutRecord{ID: "order-9", Status: backend.CheckoutPending, PaymentReference: "ref-9"})
	_, err := sf.Checkout.LoadHistory(ctx)
	require.NoError(t, err)

	err = handler.CancelCheckout(ctx, sf, CancelCheckout{RecordID: "order-9"})
	assert.ErrorIs(t, err, prompt.ErrUnanswered)
	assert.Empty(t, sf.Notices.List())

	no := false
	err = handler.CancelCheckout(ctx, sf, CancelCheckout{RecordID: "order-9", Confirm: &no})
	assert.ErrorIs(t, err, checkout.ErrPromptDeclined)
	assert.Empty(t, sf.Notices.List())

	err = handler.CancelCheckout(ctx, sf, CancelCheckout{RecordID: "order-9", Confirm: yes()})
	require.NoError(t, err)
	assert.Equal(t, "Order cancelled", lastNotice(t, sf).Message)
	assert.Equal(t, 1, be.CallCount("CancelCheckout"))
}

func TestHandler_ResumeAndRestart(t *testing.T) {
	handler, sf, be := newTestHandler()
	ctx := context.Background()
	be.AddRecord(backend.CheckoutRecord{ID: "order-9", Status: backend.CheckoutPending, PaymentMethod: "card", PaymentReference: "ref-9", ShippingAddress: "9 Elm"})
	_, err := sf.Checkout.LoadHistory(ctx)
	require.NoError(t, err)

	s, err := handler.ResumePayment(ctx, sf, ResumePayment{RecordID: "order-9"})
	require.NoError(t, err)
	assert.Equal(t, "ref-9", s.PaymentReference)

	s = handler.RestartCheckout(ctx, sf, RestartCheckout{})
	assert.Equal(t, checkout.StepShipping, s.Step)
	assert.Empty(t, s.PaymentReference)
}

func TestHandler_SaveBillingForm_ReturnsErrors(t *testing.T) {
	handler, sf, _ := newTestHandler()

	errs, err := handler.SaveBillingForm(context.Background(), sf, SaveBillingForm{Form: validation.BillingForm{Email: "x"}})

	require.NoError(t, err)
	assert.False(t, errs.Valid())
	assert.Len(t, errs, 8)
}

// ============================================
// Wishlist and Review Command Tests
// ============================================

func TestHandler_Wishlist(t *testing.T) {
	handler, sf, _ := newTestHandler()
	ctx := context.Background()

	items, err := handler.AddToWishlist(ctx, sf, AddToWishlist{ProductID: "p1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "USB-C Cable", items[0].Name)

	items, err = handler.RemoveFromWishlist(ctx, sf, RemoveFromWishlist{ProductID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHandler_PostReview(t *testing.T) {
	handler, sf, be := newTestHandler()
	ctx := context.Background()

	_, err := handler.PostReview(ctx, sf, PostReview{ProductID: "p1", Rating: 6, Comment: "great"})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = handler.PostReview(ctx, sf, PostReview{ProductID: "p1", Rating: 5, Comment: "  "})
	assert.ErrorIs(t, err, ErrEmptyComment)
	assert.Zero(t, be.CallCount("PostProductReview"))

	review, err := handler.PostReview(ctx, sf, PostReview{ProductID: "p1", Rating: 5, Comment: " Works great "})
	require.NoError(t, err)
	assert.Equal(t, "Works great", review.Comment)
}
