package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/backend/mocks"
	"github.com/example/technest/internal/domain/cart"
	"github.com/example/technest/internal/domain/checkout"
	"github.com/example/technest/internal/infrastructure/store"
	storemocks "github.com/example/technest/internal/infrastructure/store/mocks"
	"github.com/example/technest/internal/logging"
	"github.com/example/technest/internal/notify"
	"github.com/example/technest/internal/validation"
)

var catalog = []backend.Product{
	{ID: "p1", Name: "USB-C Cable", Price: 1500},
	{ID: "p2", Name: "Charger", Price: 4500},
}

func newTestDeps(remote bool) (Dependencies, *mocks.MockBackend, *storemocks.MockEventStore) {
	be := mocks.NewMockBackend(catalog...)
	events := storemocks.NewMockEventStore()
	return Dependencies{
		Backend:           be.Backend(),
		State:             store.NewMemoryStateStore(),
		Events:            events,
		Log:               logging.Discard(),
		RemoteCart:        remote,
		ConfirmationDelay: -1,
	}, be, events
}

func addToCart(t *testing.T, sf *Storefront, p backend.Product, qty int) {
	t.Helper()
	_, err := sf.Cart.AddItem(context.Background(), cart.LineItem{
		ProductID: p.ID,
		Snapshot:  &cart.Snapshot{Name: p.Name, Price: p.Price},
	}, qty)
	require.NoError(t, err)
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	deps, _, _ := newTestDeps(true)
	registry := NewRegistry(deps)

	var wg sync.WaitGroup
	results := make([]*Storefront, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sf, err := registry.Get(context.Background(), "s1")
			assert.NoError(t, err)
			results[i] = sf
		}(i)
	}
	wg.Wait()

	for _, sf := range results {
		assert.Same(t, results[0], sf)
	}
	assert.Equal(t, 1, registry.Len())

	registry.Remove("s1")
	assert.Zero(t, registry.Len())
}

func TestRegistry_LoadFailureIsNotified(t *testing.T) {
	deps, be, _ := newTestDeps(true)
	be.CartErr = &backend.APIError{StatusCode: 503, Message: "Cart service is down"}
	registry := NewRegistry(deps)

	sf, err := registry.Get(context.Background(), "s1")

	require.Error(t, err)
	require.NotNil(t, sf)
	notices := sf.Notices.List()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelError, notices[0].Level)
}

func TestRegistry_LoadRetriedAfterFailure(t *testing.T) {
	deps, be, _ := newTestDeps(true)
	be.CartErr = &backend.APIError{StatusCode: 503, Message: "Cart service is down"}
	registry := NewRegistry(deps)
	ctx := context.Background()

	_, err := registry.Get(ctx, "s1")
	require.Error(t, err)

	be.CartErr = nil
	require.NoError(t, be.AddToCart(ctx, "p1", 3))

	sf, err := registry.Get(ctx, "s1")
	require.NoError(t, err)
	snapshot := sf.Cart.Snapshot()
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, 3, snapshot.TotalQuantity)
	assert.Equal(t, 2, be.CallCount("GetCart"))

	// Loaded storefronts are not fetched again.
	_, err = registry.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, be.CallCount("GetCart"))
}

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	deps, _, _ := newTestDeps(true)
	deps.IdleTTL = time.Hour
	registry := NewRegistry(deps)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }
	ctx := context.Background()

	idle, err := registry.Get(ctx, "idle")
	require.NoError(t, err)
	_, err = registry.Get(ctx, "active")
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	_, err = registry.Get(ctx, "active")
	require.NoError(t, err)
	assert.Zero(t, registry.Sweep())

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, registry.Sweep())
	assert.Equal(t, 1, registry.Len())

	fresh, err := registry.Get(ctx, "idle")
	require.NoError(t, err)
	assert.NotSame(t, idle, fresh)
}

func TestRegistry_SweepDisabledWithoutTTL(t *testing.T) {
	deps, _, _ := newTestDeps(true)
	registry := NewRegistry(deps)
	registry.now = func() time.Time { return time.Now().Add(-24 * time.Hour) }
	_, err := registry.Get(context.Background(), "s1")
	require.NoError(t, err)
	registry.now = time.Now

	assert.Zero(t, registry.Sweep())
	assert.Equal(t, 1, registry.Len())
}

func TestStorefront_RemoteCheckoutFlow(t *testing.T) {
	deps, be, events := newTestDeps(true)
	sf := New("s1", deps)
	ctx := context.Background()
	require.NoError(t, sf.Load(ctx))

	addToCart(t, sf, catalog[0], 2)
	addToCart(t, sf, catalog[1], 1)

	_, err := sf.Checkout.SubmitShipping(ctx, "1 Main St", checkout.MethodCard)
	require.NoError(t, err)
	record, err := sf.Checkout.VerifyPayment(ctx)
	require.NoError(t, err)
	sf.Checkout.Wait()

	assert.Equal(t, int64(7500), record.TotalPrice)
	assert.Empty(t, sf.Cart.Snapshot().Items)
	assert.GreaterOrEqual(t, be.CallCount("GetCart"), 2)

	nav, ok := sf.Navigation().Pop()
	require.True(t, ok)
	assert.Equal(t, NavigateOrder, nav.Kind)
	assert.Equal(t, "/orders/"+record.ID, nav.Target)
	_, ok = sf.Navigation().Pop()
	assert.False(t, ok)

	assert.Contains(t, events.EventTypes(), checkout.EventCheckoutCompleted)
}

func TestStorefront_LocalCartClearedAfterCheckout(t *testing.T) {
	deps, be, _ := newTestDeps(false)
	sf := New("s1", deps)
	ctx := context.Background()

	addToCart(t, sf, catalog[0], 1)
	_, err := sf.Checkout.SubmitShipping(ctx, "1 Main St", checkout.MethodCashOnDelivery)
	require.NoError(t, err)
	_, err = sf.Checkout.VerifyPayment(ctx)
	require.NoError(t, err)
	sf.Checkout.Wait()

	assert.Empty(t, sf.Cart.Snapshot().Items)
	assert.Zero(t, be.CallCount("AddToCart"))
}

func TestStorefront_RefreshFailureNotified(t *testing.T) {
	deps, be, _ := newTestDeps(true)
	sf := New("s1", deps)
	ctx := context.Background()
	_, err := sf.Checkout.SubmitShipping(ctx, "1 Main St", checkout.MethodCard)
	require.NoError(t, err)

	be.CartErr = errors.New("cart down")
	_, err = sf.Checkout.VerifyPayment(ctx)
	require.NoError(t, err)
	sf.Checkout.Wait()

	require.Len(t, sf.Notices.List(), 1)
}

func TestStorefront_RedirectGoesThroughOutbox(t *testing.T) {
	deps, _, _ := newTestDeps(true)
	sf := New("s1", deps)
	ctx := context.Background()
	_, err := sf.Checkout.SubmitShipping(ctx, "1 Main St", checkout.MethodPaystack)
	require.NoError(t, err)

	url, err := sf.Checkout.Redirect(ctx, answerYes{})
	require.NoError(t, err)

	nav, ok := sf.Navigation().Pop()
	require.True(t, ok)
	assert.Equal(t, NavigateExternal, nav.Kind)
	assert.Equal(t, url, nav.Target)
}

func TestStorefront_BillingForm(t *testing.T) {
	deps, _, _ := newTestDeps(true)
	sf := New("s1", deps)
	ctx := context.Background()

	form, err := sf.BillingForm(ctx)
	require.NoError(t, err)
	assert.Equal(t, validation.BillingForm{}, form)

	draft := validation.BillingForm{FirstName: "Ada", Email: "not-an-email"}
	errs, err := sf.SaveBillingForm(ctx, draft)
	require.NoError(t, err)
	assert.False(t, errs.Valid())
	assert.NotEmpty(t, errs[validation.FieldEmail])

	// survives a new storefront for the same session
	reloaded := New("s1", deps)
	form, err = reloaded.BillingForm(ctx)
	require.NoError(t, err)
	assert.Equal(t, draft, form)

	require.NoError(t, reloaded.ClearBillingForm(ctx))
	form, err = sf.BillingForm(ctx)
	require.NoError(t, err)
	assert.Empty(t, form.FirstName)
}

func TestStorefront_BillingFormSaveFailure(t *testing.T) {
	deps, _, _ := newTestDeps(true)
	state := storemocks.NewMockStateStore()
	state.SaveErr = errors.New("read-only")
	deps.State = state
	sf := New("s1", deps)

	_, err := sf.SaveBillingForm(context.Background(), validation.BillingForm{})

	assert.ErrorContains(t, err, "read-only")
}

func TestStorefront_CompletedEventCarriesBillingContact(t *testing.T) {
	deps, _, events := newTestDeps(true)
	sf := New("s1", deps)
	ctx := context.Background()

	_, err := sf.SaveBillingForm(ctx, validation.BillingForm{
		FirstName: "Ada", LastName: "Lovelace", Email: " ada@example.com ",
	})
	require.NoError(t, err)
	addToCart(t, sf, catalog[0], 1)
	_, err = sf.Checkout.SubmitShipping(ctx, "1 Main St", checkout.MethodCard)
	require.NoError(t, err)
	_, err = sf.Checkout.VerifyPayment(ctx)
	require.NoError(t, err)
	sf.Checkout.Wait()

	var completed *checkout.CheckoutCompleted
	for _, call := range events.AppendCalls {
		if e, ok := call.Data.(checkout.CheckoutCompleted); ok {
			completed = &e
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, "ada@example.com", completed.CustomerEmail)
	assert.Equal(t, "Ada Lovelace", completed.CustomerName)
}
