package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/infrastructure/store"
	"github.com/example/technest/internal/metrics"
	"github.com/example/technest/internal/prompt"
)

// Operation names used in logs and metrics.
const (
	OpSubmitShipping = "submit_shipping"
	OpRedirect       = "redirect"
	OpVerify         = "verify"
	OpResume         = "resume"
	OpCancel         = "cancel"
	OpHistory        = "history"
)

// DefaultConfirmationDelay is how long the confirmation step is shown before
// navigating to the order detail.
const DefaultConfirmationDelay = 2 * time.Second

// Navigator performs the navigation side effects of the wizard.
type Navigator interface {
	// Redirect sends the user to an external payment page.
	Redirect(url string)
	// ShowOrder shows the order detail view for a checkout record.
	ShowOrder(recordID string)
}

// CartRefresher re-syncs the cart after an order completes.
type CartRefresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to a CartRefresher.
type RefresherFunc func(ctx context.Context) error

func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// ContactFunc returns the customer's e-mail and name for the completed-order
// event. Either may be empty.
type ContactFunc func(ctx context.Context) (email, name string)

type Options struct {
	SessionID string
	Backend   backend.CheckoutAPI
	Cart      CartRefresher
	Navigator Navigator
	Events    store.EventLog
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics
	// ConfirmationDelay defaults to DefaultConfirmationDelay. Negative means
	// navigate immediately.
	ConfirmationDelay time.Duration
	// OnBackgroundError receives failures of the post-verification work that
	// runs after VerifyPayment has returned.
	OnBackgroundError func(error)
	Contact           ContactFunc
}

// Wizard is one session's checkout state machine.
type Wizard struct {
	mu      sync.Mutex
	session Session
	history []backend.CheckoutRecord

	sessionID string
	api       backend.CheckoutAPI
	cart      CartRefresher
	nav       Navigator
	events    store.EventLog
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	delay     time.Duration
	onError   func(error)
	contact   ContactFunc

	background sync.WaitGroup
	now        func() time.Time
}

func NewWizard(opts Options) *Wizard {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	delay := opts.ConfirmationDelay
	switch {
	case delay == 0:
		delay = DefaultConfirmationDelay
	case delay < 0:
		delay = 0
	}
	return &Wizard{
		session:   newSession(),
		sessionID: opts.SessionID,
		api:       opts.Backend,
		cart:      opts.Cart,
		nav:       opts.Navigator,
		events:    opts.Events,
		log:       log.WithField("session_id", opts.SessionID),
		metrics:   opts.Metrics,
		delay:     delay,
		onError:   opts.OnBackgroundError,
		contact:   opts.Contact,
		now:       time.Now,
	}
}

// Session returns a copy of the wizard state.
func (w *Wizard) Session() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// History returns the known checkout records, newest first.
func (w *Wizard) History() []backend.CheckoutRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]backend.CheckoutRecord(nil), w.history...)
}

// lookup finds a history record, reloading the history once when the record
// is not known locally yet.
func (w *Wizard) lookup(ctx context.Context, id string) (backend.CheckoutRecord, error) {
	if record, ok := w.Record(id); ok {
		return record, nil
	}
	if _, err := w.LoadHistory(ctx); err != nil {
		return backend.CheckoutRecord{}, err
	}
	if record, ok := w.Record(id); ok {
		return record, nil
	}
	return backend.CheckoutRecord{}, ErrRecordNotFound
}

// Record returns the history entry with id.
func (w *Wizard) Record(id string) (backend.CheckoutRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.indexOf(id); i >= 0 {
		return w.history[i], true
	}
	return backend.CheckoutRecord{}, false
}

func (w *Wizard) indexOf(id string) int {
	for i, r := range w.history {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Wait blocks until the background work started by VerifyPayment is done.
func (w *Wizard) Wait() {
	w.background.Wait()
}

// Restart returns to an empty shipping step.
func (w *Wizard) Restart() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = newSession()
	return w.session
}

// SubmitShipping initializes the checkout and moves to the payment step.
func (w *Wizard) SubmitShipping(ctx context.Context, address string, method PaymentMethod) (session Session, err error) {
	defer func() { w.metrics.Checkout(OpSubmitShipping, err) }()

	address = strings.TrimSpace(address)
	if address == "" {
		return w.Session(), fmt.Errorf("%w: shipping address", ErrMissingField)
	}
	if !method.Valid() {
		return w.Session(), fmt.Errorf("%w: payment method", ErrMissingField)
	}

	w.mu.Lock()
	from := w.session.Step
	w.mu.Unlock()
	if !from.CanTransitionTo(StepPayment) {
		return w.Session(), transitionError(from, StepPayment)
	}

	result, err := w.initialize(ctx, address, method)
	if err != nil {
		w.log.WithError(err).WithField("method", method).Warn("checkout initialization failed")
		return w.Session(), err
	}

	w.mu.Lock()
	if err := w.session.transition(StepPayment); err != nil {
		w.mu.Unlock()
		return w.Session(), err
	}
	w.session.ShippingAddress = address
	w.session.PaymentMethod = method
	w.session.PaymentReference = result.Reference
	w.session.AuthorizationURL = result.AuthorizationURL
	session = w.session
	w.mu.Unlock()

	w.record(ctx, EventCheckoutInitialized, CheckoutInitialized{
		SessionID:       w.sessionID,
		Reference:       result.Reference,
		PaymentMethod:   string(method),
		ShippingAddress: address,
		InitializedAt:   w.now(),
	})
	return session, nil
}

func (w *Wizard) initialize(ctx context.Context, address string, method PaymentMethod) (*backend.CheckoutInit, error) {
	result, err := w.api.InitializeCheckout(ctx, address, string(method))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitializationFailed, err)
	}
	if result == nil || result.Reference == "" {
		return nil, fmt.Errorf("%w: no payment reference returned", ErrInitializationFailed)
	}
	return result, nil
}

// Redirect sends the user to the processor's authorization page once they
// confirm. It returns the URL navigated to.
func (w *Wizard) Redirect(ctx context.Context, confirm prompt.Prompter) (url string, err error) {
	defer func() { w.metrics.Checkout(OpRedirect, err) }()

	session := w.Session()
	if session.Step != StepPayment || session.AuthorizationURL == "" {
		return "", ErrNoAuthorizationURL
	}

	ok, err := confirm.Confirm(ctx, prompt.Prompt{
		Kind:         prompt.KindRedirect,
		Title:        "Continue to payment",
		Message:      "You will be redirected to our payment provider to complete your order.",
		ConfirmLabel: "Continue",
		CancelLabel:  "Stay here",
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrPromptDeclined
	}

	if w.nav != nil {
		w.nav.Redirect(session.AuthorizationURL)
	}
	w.record(ctx, EventPaymentRedirected, PaymentRedirected{
		SessionID:        w.sessionID,
		Reference:        session.PaymentReference,
		AuthorizationURL: session.AuthorizationURL,
		RedirectedAt:     w.now(),
	})
	return session.AuthorizationURL, nil
}

// VerifyPayment finalizes the order for the held reference.
func (w *Wizard) VerifyPayment(ctx context.Context) (record *backend.CheckoutRecord, err error) {
	defer func() { w.metrics.Checkout(OpVerify, err) }()

	session := w.Session()
	if session.PaymentReference == "" {
		return nil, ErrMissingReference
	}

	record, err = w.api.VerifyPayment(ctx, session.PaymentReference)
	if err != nil {
		entry := w.log.WithError(err).WithField("reference", session.PaymentReference)
		if errors.Is(err, backend.ErrReferenceExhausted) {
			w.mu.Lock()
			if w.session.PaymentReference == session.PaymentReference && w.session.transition(StepShipping) == nil {
				w.session.clearPayment()
			}
			w.mu.Unlock()
			entry.Warn("payment reference exhausted, back to shipping")
		} else {
			entry.Warn("payment verification failed")
		}
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: empty verification response", ErrVerificationFailed)
	}

	w.mu.Lock()
	if err := w.session.transition(StepConfirmation); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if i := w.indexOf(record.ID); i >= 0 {
		w.history = append(w.history[:i], w.history[i+1:]...)
	}
	w.history = append([]backend.CheckoutRecord{*record}, w.history...)
	w.session.ShippingAddress = ""
	w.session.PaymentMethod = ""
	w.session.clearPayment()
	w.session.LastOrderID = record.ID
	w.mu.Unlock()

	completed := CheckoutCompleted{
		SessionID:       w.sessionID,
		RecordID:        record.ID,
		Reference:       session.PaymentReference,
		PaymentMethod:   string(session.PaymentMethod),
		ShippingAddress: session.ShippingAddress,
		Items:           record.Cart,
		TotalPrice:      record.TotalPrice,
		CompletedAt:     w.now(),
	}
	if w.contact != nil {
		completed.CustomerEmail, completed.CustomerName = w.contact(ctx)
	}
	w.record(ctx, EventCheckoutCompleted, completed)

	w.afterCompletion(context.WithoutCancel(ctx), record.ID)
	return record, nil
}

// afterCompletion refreshes the cart and, after the confirmation delay, shows
// the order. Both run after VerifyPayment returns; Wait blocks on them.
func (w *Wizard) afterCompletion(ctx context.Context, recordID string) {
	if w.cart != nil {
		w.background.Add(1)
		go func() {
			defer w.background.Done()
			if err := w.cart.Refresh(ctx); err != nil {
				w.log.WithError(err).Warn("failed to refresh cart after checkout")
				if w.onError != nil {
					w.onError(err)
				}
			}
		}()
	}
	if w.nav != nil {
		w.background.Add(1)
		go func() {
			defer w.background.Done()
			if w.delay > 0 {
				timer := time.NewTimer(w.delay)
				defer timer.Stop()
				<-timer.C
			}
			w.nav.ShowOrder(recordID)
		}()
	}
}

// ResumePayment re-enters the payment step for a pending record. Redirect
// methods get a fresh reference and authorization URL.
func (w *Wizard) ResumePayment(ctx context.Context, recordID string) (session Session, err error) {
	defer func() { w.metrics.Checkout(OpResume, err) }()

	record, err := w.lookup(ctx, recordID)
	if err != nil {
		return w.Session(), err
	}
	if record.Status != backend.CheckoutPending {
		return w.Session(), ErrNotResumable
	}

	method := PaymentMethod(record.PaymentMethod)
	resumed := Session{
		Step:             StepPayment,
		ShippingAddress:  record.ShippingAddress,
		PaymentMethod:    method,
		PaymentReference: record.PaymentReference,
		RecordID:         record.ID,
	}
	if method.IsRedirect() {
		result, err := w.initialize(ctx, record.ShippingAddress, method)
		if err != nil {
			w.log.WithError(err).WithField("record_id", recordID).Warn("failed to re-initialize checkout")
			return w.Session(), err
		}
		resumed.PaymentReference = result.Reference
		resumed.AuthorizationURL = result.AuthorizationURL
		w.record(ctx, EventCheckoutInitialized, CheckoutInitialized{
			SessionID:       w.sessionID,
			Reference:       result.Reference,
			PaymentMethod:   string(method),
			ShippingAddress: record.ShippingAddress,
			Resumed:         true,
			InitializedAt:   w.now(),
		})
	}
	if resumed.PaymentReference == "" {
		return w.Session(), ErrMissingReference
	}

	// Resuming starts a new run of the wizard, so whatever step was showing
	// is abandoned.
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = resumed
	return w.session, nil
}

// CancelCheckout cancels a pending record after the user confirms.
func (w *Wizard) CancelCheckout(ctx context.Context, recordID string, confirm prompt.Prompter) (err error) {
	defer func() { w.metrics.Checkout(OpCancel, err) }()

	record, err := w.lookup(ctx, recordID)
	if err != nil {
		return err
	}
	if record.Status != backend.CheckoutPending {
		return ErrNotCancellable
	}

	ok, err := confirm.Confirm(ctx, prompt.Prompt{
		Kind:         prompt.KindCancelCheckout,
		Title:        "Cancel this order?",
		Message:      "The pending payment for this order will be cancelled.",
		ConfirmLabel: "Cancel order",
		CancelLabel:  "Keep order",
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrPromptDeclined
	}

	if err := w.api.CancelCheckout(ctx, recordID); err != nil {
		w.log.WithError(err).WithField("record_id", recordID).Warn("checkout cancellation failed")
		return fmt.Errorf("%w: %w", ErrCancellationFailed, err)
	}

	w.mu.Lock()
	if i := w.indexOf(recordID); i >= 0 {
		w.history[i].Status = backend.CheckoutCancelled
	}
	if w.session.holds(record) && w.session.transition(StepCancelled) == nil {
		w.session.clearPayment()
	}
	w.mu.Unlock()

	w.record(ctx, EventCheckoutCancelled, CheckoutCancelled{
		SessionID:   w.sessionID,
		RecordID:    recordID,
		Reference:   record.PaymentReference,
		CancelledAt: w.now(),
	})
	return nil
}

// LoadHistory replaces the local history with the backend's.
func (w *Wizard) LoadHistory(ctx context.Context) (history []backend.CheckoutRecord, err error) {
	defer func() { w.metrics.Checkout(OpHistory, err) }()

	records, err := w.api.GetCheckoutHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout history: %w", err)
	}

	w.mu.Lock()
	w.history = append([]backend.CheckoutRecord(nil), records...)
	w.mu.Unlock()
	return records, nil
}

func (w *Wizard) record(ctx context.Context, eventType string, event any) {
	if w.events == nil {
		return
	}
	if _, err := w.events.Append(ctx, w.sessionID, AggregateType, eventType, event); err != nil {
		w.log.WithError(err).WithField("event", eventType).Warn("failed to record checkout event")
	}
}
