// Package session wires the per-session storefront state containers to their
// collaborators. Everything a storefront needs arrives through Dependencies.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/domain/cart"
	"github.com/example/technest/internal/domain/checkout"
	"github.com/example/technest/internal/domain/wishlist"
	"github.com/example/technest/internal/infrastructure/store"
	"github.com/example/technest/internal/logging"
	"github.com/example/technest/internal/metrics"
	"github.com/example/technest/internal/notify"
	"github.com/example/technest/internal/validation"
)

// Dependencies is the application context shared by all storefronts.
type Dependencies struct {
	Backend backend.Backend
	State   store.StateStore
	Events  store.EventLog
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics

	// RemoteCart syncs cart mutations to Backend.Cart. Otherwise the cart
	// only lives in State.
	RemoteCart            bool
	RollbackOnSyncFailure bool
	ConfirmationDelay     time.Duration

	// IdleTTL evicts storefronts not used for that long. Zero keeps them
	// until the session ends.
	IdleTTL time.Duration
}

// Storefront is one session's state.
type Storefront struct {
	ID       string
	Cart     *cart.Container
	Checkout *checkout.Wizard
	Wishlist *wishlist.Service
	Notices  *notify.Center

	nav   *Outbox
	state store.StateStore
	log   logrus.FieldLogger

	loadMu sync.Mutex
	loaded bool
}

func New(id string, deps Dependencies) *Storefront {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	state := deps.State
	if state == nil {
		state = store.NewMemoryStateStore()
	}

	sf := &Storefront{
		ID:      id,
		Notices: notify.NewCenter(deps.Metrics),
		nav:     NewOutbox(),
		state:   state,
		log:     log.WithField("session_id", id),
	}

	cartOpts := cart.Options{
		SessionID:             id,
		State:                 state,
		Events:                deps.Events,
		Log:                   logging.Component(log, "cart"),
		Metrics:               deps.Metrics,
		RollbackOnSyncFailure: deps.RollbackOnSyncFailure,
	}
	if deps.RemoteCart {
		cartOpts.Remote = deps.Backend.Cart
	}
	sf.Cart = cart.NewContainer(cartOpts)

	sf.Checkout = checkout.NewWizard(checkout.Options{
		SessionID:         id,
		Backend:           deps.Backend.Checkout,
		Cart:              sf.cartRefresher(),
		Navigator:         sf.nav,
		Events:            deps.Events,
		Log:               logging.Component(log, "checkout"),
		Metrics:           deps.Metrics,
		ConfirmationDelay: deps.ConfirmationDelay,
		OnBackgroundError: func(err error) { sf.Notices.Error(err) },
		Contact:           sf.contact,
	})

	sf.Wishlist = wishlist.NewService(deps.Backend.Wishlist, logging.Component(log, "wishlist"))
	return sf
}

// cartRefresher re-syncs a remote cart after checkout. A local cart was
// consumed by the order, so it is cleared instead.
func (sf *Storefront) cartRefresher() checkout.CartRefresher {
	if sf.Cart.Remote() {
		return sf.Cart
	}
	return checkout.RefresherFunc(func(ctx context.Context) error {
		_, err := sf.Cart.ClearCart(ctx)
		return err
	})
}

// contact reads the customer's e-mail and name from the billing form.
func (sf *Storefront) contact(ctx context.Context) (string, string) {
	form, err := sf.BillingForm(ctx)
	if err != nil {
		sf.log.WithError(err).Warn("failed to read billing form for order contact")
		return "", ""
	}
	name := strings.TrimSpace(form.FirstName + " " + form.LastName)
	return strings.TrimSpace(form.Email), name
}

// Load rehydrates the cart until it succeeds once. A failed load is retried
// on the next call so the local cart never stands in for an unread remote
// one. Failures are also pushed as notifications so the UI can show them.
func (sf *Storefront) Load(ctx context.Context) error {
	sf.loadMu.Lock()
	defer sf.loadMu.Unlock()
	if sf.loaded {
		return nil
	}
	if err := sf.Cart.Load(ctx); err != nil {
		sf.log.WithError(err).Warn("failed to load cart")
		sf.Notices.Error(err)
		return err
	}
	sf.loaded = true
	return nil
}

// Navigation returns the outbox the checkout wizard navigates through.
func (sf *Storefront) Navigation() *Outbox {
	return sf.nav
}

// BillingForm returns the persisted in-progress billing form.
func (sf *Storefront) BillingForm(ctx context.Context) (validation.BillingForm, error) {
	var form validation.BillingForm
	if _, err := sf.state.Load(ctx, sf.ID, store.KeyBillingForm, &form); err != nil {
		return form, fmt.Errorf("failed to load billing form: %w", err)
	}
	return form, nil
}

// SaveBillingForm persists form, valid or not, and returns its validation
// result.
func (sf *Storefront) SaveBillingForm(ctx context.Context, form validation.BillingForm) (validation.Errors, error) {
	if err := sf.state.Save(ctx, sf.ID, store.KeyBillingForm, form); err != nil {
		return nil, fmt.Errorf("failed to save billing form: %w", err)
	}
	return validation.ValidateBilling(form), nil
}

// ClearBillingForm drops the persisted billing form.
func (sf *Storefront) ClearBillingForm(ctx context.Context) error {
	return sf.state.Delete(ctx, sf.ID, store.KeyBillingForm)
}
