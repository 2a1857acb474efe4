package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/infrastructure/store/mocks"
	"github.com/example/technest/internal/logging"
	"github.com/example/technest/internal/prompt"
)

// fakeCheckoutAPI is a scripted backend.CheckoutAPI.
type fakeCheckoutAPI struct {
	mu          sync.Mutex
	initCalls   int
	verifyCalls int
	cancelCalls []string

	init      *backend.CheckoutInit
	initErr   error
	verified  *backend.CheckoutRecord
	verifyErr error
	history   []backend.CheckoutRecord
	cancelErr error
}

func (f *fakeCheckoutAPI) InitializeCheckout(ctx context.Context, address, method string) (*backend.CheckoutInit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.init, nil
}

func (f *fakeCheckoutAPI) VerifyPayment(ctx context.Context, reference string) (*backend.CheckoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	record := *f.verified
	record.PaymentReference = reference
	return &record, nil
}

func (f *fakeCheckoutAPI) GetCheckoutHistory(ctx context.Context) ([]backend.CheckoutRecord, error) {
	return f.history, nil
}

func (f *fakeCheckoutAPI) CancelCheckout(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, id)
	return f.cancelErr
}

type recordingNavigator struct {
	mu        sync.Mutex
	redirects []string
	orders    []string
}

func (n *recordingNavigator) Redirect(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, url)
}

func (n *recordingNavigator) ShowOrder(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, id)
}

type testWizard struct {
	*Wizard
	api      *fakeCheckoutAPI
	nav      *recordingNavigator
	events   *mocks.MockEventStore
	refresh  atomic.Int32
	bgErrors atomic.Int32
}

func newTestWizard() *testWizard {
	tw := &testWizard{
		api: &fakeCheckoutAPI{
			init:     &backend.CheckoutInit{Reference: "ref-1"},
			verified: &backend.CheckoutRecord{ID: "order-1", Status: backend.CheckoutCompleted, TotalPrice: 2500},
		},
		nav:    &recordingNavigator{},
		events: mocks.NewMockEventStore(),
	}
	tw.Wizard = NewWizard(Options{
		SessionID: "session-1",
		Backend:   tw.api,
		Cart: RefresherFunc(func(context.Context) error {
			tw.refresh.Add(1)
			return nil
		}),
		Navigator:         tw.nav,
		Events:            tw.events,
		Log:               logging.Discard(),
		ConfirmationDelay: -1,
		OnBackgroundError: func(error) { tw.bgErrors.Add(1) },
	})
	return tw
}

func (tw *testWizard) toPayment(t *testing.T, method PaymentMethod) {
	t.Helper()
	_, err := tw.SubmitShipping(context.Background(), "12 Analytical Way", method)
	require.NoError(t, err)
}

// ============================================
// Transition Table Tests
// ============================================

func TestStep_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Step
		want     bool
	}{
		{StepShipping, StepPayment, true},
		{StepShipping, StepConfirmation, false},
		{StepShipping, StepCancelled, true},
		{StepPayment, StepConfirmation, true},
		{StepPayment, StepShipping, true},
		{StepPayment, StepCancelled, true},
		{StepConfirmation, StepShipping, true},
		{StepConfirmation, StepPayment, false},
		{StepCancelled, StepShipping, true},
		{StepCancelled, StepConfirmation, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentMethod(t *testing.T) {
	assert.True(t, MethodCard.Valid())
	assert.False(t, PaymentMethod("crypto").Valid())
	assert.True(t, MethodPaystack.IsRedirect())
	assert.False(t, MethodCashOnDelivery.IsRedirect())
}

// ============================================
// Submit Shipping Tests
// ============================================

func TestWizard_SubmitShipping_Success(t *testing.T) {
	tw := newTestWizard()
	tw.api.init = &backend.CheckoutInit{Reference: "ref-9", AuthorizationURL: "https://pay.example/ref-9"}

	session, err := tw.SubmitShipping(context.Background(), "  12 Analytical Way ", MethodPaystack)

	require.NoError(t, err)
	assert.Equal(t, StepPayment, session.Step)
	assert.Equal(t, "12 Analytical Way", session.ShippingAddress)
	assert.Equal(t, "ref-9", session.PaymentReference)
	assert.Equal(t, "https://pay.example/ref-9", session.AuthorizationURL)
	assert.Equal(t, []string{EventCheckoutInitialized}, tw.events.EventTypes())
}

func TestWizard_SubmitShipping_MissingFields(t *testing.T) {
	tw := newTestWizard()

	_, err := tw.SubmitShipping(context.Background(), "   ", MethodCard)
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = tw.SubmitShipping(context.Background(), "12 Analytical Way", PaymentMethod(""))
	assert.ErrorIs(t, err, ErrMissingField)

	assert.Zero(t, tw.api.initCalls)
	assert.Equal(t, StepShipping, tw.Session().Step)
}

func TestWizard_SubmitShipping_InitializationFailed(t *testing.T) {
	tw := newTestWizard()
	tw.api.initErr = &backend.APIError{StatusCode: 400, Message: "Cart is empty"}

	session, err := tw.SubmitShipping(context.Background(), "12 Analytical Way", MethodCard)

	assert.ErrorIs(t, err, ErrInitializationFailed)
	assert.Equal(t, "Cart is empty", backend.MessageOf(err, backend.GenericMessage))
	assert.Equal(t, StepShipping, session.Step)
	assert.Empty(t, session.PaymentReference)
	assert.Empty(t, tw.events.AppendCalls)
}

func TestWizard_SubmitShipping_EmptyReference(t *testing.T) {
	tw := newTestWizard()
	tw.api.init = &backend.CheckoutInit{}

	_, err := tw.SubmitShipping(context.Background(), "12 Analytical Way", MethodCard)

	assert.ErrorIs(t, err, ErrInitializationFailed)
	assert.Equal(t, StepShipping, tw.Session().Step)
}

func TestWizard_SubmitShipping_FromPaymentRejected(t *testing.T) {
	tw := newTestWizard()
	tw.toPayment(t, MethodCard)

	_, err := tw.SubmitShipping(context.Background(), "Elsewhere", MethodCard)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, tw.api.initCalls)
}

// ============================================
// Redirect Tests
// ============================================

func TestWizard_Redirect_RequiresAuthorizationURL(t *testing.T) {
	tw := newTestWizard()
	tw.toPayment(t, MethodCard)

	_, err := tw.Redirect(context.Background(), prompt.Answer(true))

	assert.ErrorIs(t, err, ErrNoAuthorizationURL)
	assert.Empty(t, tw.nav.redirects)
}

func TestWizard_Redirect_Declined(t *testing.T) {
	tw := newTestWizard()
	tw.api.init = &backend.CheckoutInit{Reference: "ref-1", AuthorizationURL: "https://pay.example/ref-1"}
	tw.toPayment(t, MethodPaystack)

	_, err := tw.Redirect(context.Background(), prompt.Answer(false))

	assert.ErrorIs(t, err, ErrPromptDeclined)
	assert.Empty(t, tw.nav.redirects)
	assert.Equal(t, StepPayment, tw.Session().Step)
}

func TestWizard_Redirect_Unanswered(t *testing.T) {
	tw := newTestWizard()
	tw.api.init = &backend.CheckoutInit{Reference: "ref-1", AuthorizationURL: "https://pay.example/ref-1"}
	tw.toPayment(t, MethodPaystack)

	_, err := tw.Redirect(context.Background(), prompt.Unanswered())

	var required *prompt.RequiredError
	require.ErrorAs(t, err, &required)
	assert.Equal(t, prompt.KindRedirect, required.Prompt.Kind)
	assert.Empty(t, tw.nav.redirects)
}

func TestWizard_Redirect_Confirmed(t *testing.T) {
	tw := newTestWizard()
	tw.api.init = &backend.CheckoutInit{Reference: "ref-1", AuthorizationURL: "https://pay.example/ref-1"}
	tw.toPayment(t, MethodPaystack)

	url, err := tw.Redirect(context.Background(), prompt.Answer(true))

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/ref-1", url)
	assert.Equal(t, []string{"https://pay.example/ref-1"}, tw.nav.redirects)
	assert.Equal(t, []string{EventCheckoutInitialized, EventPaymentRedirected}, tw.events.EventTypes())
}

// ============================================
// Verify Payment Tests
// ============================================

func TestWizard_VerifyPayment_MissingReference(t *testing.T) {
	tw := newTestWizard()

	_, err := tw.VerifyPayment(context.Background())

	assert.ErrorIs(t, err, ErrMissingReference)
	assert.Zero(t, tw.api.verifyCalls)
	assert.Equal(t, StepShipping, tw.Session().Step)
}

func TestWizard_VerifyPayment_Success(t *testing.T) {
	tw := newTestWizard()
	tw.api.history = []backend.CheckoutRecord{{ID: "order-0", Status: backend.CheckoutCompleted}}
	_, err := tw.LoadHistory(context.Background())
	require.NoError(t, err)
	tw.toPayment(t, MethodCard)

	record, err := tw.VerifyPayment(context.Background())
	require.NoError(t, err)
	tw.Wait()

	assert.Equal(t, "order-1", record.ID)
	session := tw.Session()
	assert.Equal(t, StepConfirmation, session.Step)
	assert.Empty(t, session.ShippingAddress)
	assert.Empty(t, session.PaymentMethod)
	assert.Empty(t, session.PaymentReference)
	assert.Equal(t, "order-1", session.LastOrderID)

	history := tw.History()
	require.Len(t, history, 2)
	assert.Equal(t, "order-1", history[0].ID)
	assert.Equal(t, "order-0", history[1].ID)

	assert.Equal(t, int32(1), tw.refresh.Load())
	assert.Equal(t, []string{"order-1"}, tw.nav.orders)

	completed := tw.events.AppendCalls[1].Data.(CheckoutCompleted)
	assert.Equal(t, "ref-1", completed.Reference)
	assert.Equal(t, "12 Analytical Way", completed.ShippingAddress)
	assert.Equal(t, int64(2500), completed.TotalPrice)
}

func TestWizard_VerifyPayment_FailureKeepsReference(t *testing.T) {
	tw := newTestWizard()
	tw.toPayment(t, MethodCard)
	tw.api.verifyErr = &backend.APIError{StatusCode: 400, Message: "Payment not completed"}

	_, err := tw.VerifyPayment(context.Background())

	assert.ErrorIs(t, err, ErrVerificationFailed)
	session := tw.Session()
	assert.Equal(t, StepPayment, session.Step)
	assert.Equal(t, "ref-1", session.PaymentReference)
	assert.Empty(t, tw.History())

	// retry without re-initializing
	tw.api.verifyErr = nil
	_, err = tw.VerifyPayment(context.Background())
	require.NoError(t, err)
	tw.Wait()
	assert.Equal(t, 1, tw.api.initCalls)
}

func TestWizard_VerifyPayment_ReferenceExhausted(t *testing.T) {
	tw := newTestWizard()
	tw.toPayment(t, MethodCard)
	tw.api.verifyErr = &backend.APIError{StatusCode: 410, Message: "Reference expired"}

	_, err := tw.VerifyPayment(context.Background())

	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.ErrorIs(t, err, backend.ErrReferenceExhausted)
	session := tw.Session()
	assert.Equal(t, StepShipping, session.Step)
	assert.Empty(t, session.PaymentReference)
}

func TestWizard_VerifyPayment_CartRefreshFailureReported(t *testing.T) {
	tw := newTestWizard()
	tw.Wizard.cart = RefresherFunc(func(context.Context) error { return errors.New("cart down") })
	tw.toPayment(t, MethodCard)

	_, err := tw.VerifyPayment(context.Background())
	require.NoError(t, err)
	tw.Wait()

	assert.Equal(t, int32(1), tw.bgErrors.Load())
}

// ============================================
// Resume Payment Tests
// ============================================

func pendingRecord(method PaymentMethod) backend.CheckoutRecord {
	return backend.CheckoutRecord{
		ID:               "order-7",
		Status:           backend.CheckoutPending,
		PaymentMethod:    string(method),
		PaymentReference: "ref-old",
		ShippingAddress:  "7 Byron Rd",
	}
}

func (tw *testWizard) withHistory(t *testing.T, records ...backend.CheckoutRecord) {
	t.Helper()
	tw.api.history = records
	_, err := tw.LoadHistory(context.Background())
	require.NoError(t, err)
}

func TestWizard_ResumePayment_RestoresRecord(t *testing.T) {
	tw := newTestWizard()
	tw.withHistory(t, pendingRecord(MethodBankTransfer))

	session, err := tw.ResumePayment(context.Background(), "order-7")

	require.NoError(t, err)
	assert.Equal(t, StepPayment, session.Step)
	assert.Equal(t, "7 Byron Rd", session.ShippingAddress)
	assert.Equal(t, MethodBankTransfer, session.PaymentMethod)
	assert.Equal(t, "ref-old", session.PaymentReference)
	assert.Zero(t, tw.api.initCalls)
}

func TestWizard_ResumePayment_RedirectReinitializes(t *testing.T) {
	tw := newTestWizard()
	tw.withHistory(t, pendingRecord(MethodPaystack))
	tw.api.init = &backend.CheckoutInit{Reference: "ref-new", AuthorizationURL: "https://pay.example/ref-new"}

	session, err := tw.ResumePayment(context.Background(), "order-7")

	require.NoError(t, err)
	assert.Equal(t, "ref-new", session.PaymentReference)
	assert.Equal(t, "https://pay.example/ref-new", session.AuthorizationURL)
	assert.Equal(t, 1, tw.api.initCalls)
	data := tw.events.AppendCalls[0].Data.(CheckoutInitialized)
	assert.True(t, data.Resumed)
}

func TestWizard_ResumePayment_LoadsHistoryWhenUnknown(t *testing.T) {
	tw := newTestWizard()
	tw.api.history = []backend.CheckoutRecord{pendingRecord(MethodBankTransfer)}

	session, err := tw.ResumePayment(context.Background(), "order-7")

	require.NoError(t, err)
	assert.Equal(t, StepPayment, session.Step)
	assert.Equal(t, "order-7", session.RecordID)
	assert.Equal(t, "ref-old", session.PaymentReference)
}

func TestWizard_ResumePayment_Errors(t *testing.T) {
	tw := newTestWizard()
	completed := pendingRecord(MethodCard)
	completed.ID = "order-8"
	completed.Status = backend.CheckoutCompleted
	tw.withHistory(t, pendingRecord(MethodPaystack), completed)

	_, err := tw.ResumePayment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = tw.ResumePayment(context.Background(), "order-8")
	assert.ErrorIs(t, err, ErrNotResumable)

	tw.api.initErr = backend.ErrUnavailable
	_, err = tw.ResumePayment(context.Background(), "order-7")
	assert.ErrorIs(t, err, ErrInitializationFailed)
	assert.Equal(t, StepShipping, tw.Session().Step)
}

// ============================================
// Cancel Checkout Tests
// ============================================

func TestWizard_CancelCheckout_NotPending(t *testing.T) {
	tw := newTestWizard()
	record := pendingRecord(MethodCard)
	record.Status = backend.CheckoutCompleted
	tw.withHistory(t, record)

	err := tw.CancelCheckout(context.Background(), "order-7", prompt.Answer(true))

	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Empty(t, tw.api.cancelCalls)
}

func TestWizard_CancelCheckout_Declined(t *testing.T) {
	tw := newTestWizard()
	tw.withHistory(t, pendingRecord(MethodCard))

	err := tw.CancelCheckout(context.Background(), "order-7", prompt.Answer(false))

	assert.ErrorIs(t, err, ErrPromptDeclined)
	assert.Empty(t, tw.api.cancelCalls)
	assert.Equal(t, backend.CheckoutPending, tw.History()[0].Status)
}

func TestWizard_CancelCheckout_Success(t *testing.T) {
	tw := newTestWizard()
	tw.withHistory(t, pendingRecord(MethodCard))

	err := tw.CancelCheckout(context.Background(), "order-7", prompt.Answer(true))

	require.NoError(t, err)
	assert.Equal(t, []string{"order-7"}, tw.api.cancelCalls)
	assert.Equal(t, backend.CheckoutCancelled, tw.History()[0].Status)
	assert.Equal(t, StepShipping, tw.Session().Step)
	assert.Equal(t, []string{EventCheckoutCancelled}, tw.events.EventTypes())
}

func TestWizard_CancelCheckout_HeldReferenceMovesToCancelled(t *testing.T) {
	tw := newTestWizard()
	tw.withHistory(t, pendingRecord(MethodCard))
	_, err := tw.ResumePayment(context.Background(), "order-7")
	require.NoError(t, err)

	err = tw.CancelCheckout(context.Background(), "order-7", prompt.Answer(true))

	require.NoError(t, err)
	session := tw.Session()
	assert.Equal(t, StepCancelled, session.Step)
	assert.Empty(t, session.PaymentReference)

	_, err = tw.VerifyPayment(context.Background())
	assert.ErrorIs(t, err, ErrMissingReference)

	assert.Equal(t, StepShipping, tw.Restart().Step)
}

func TestWizard_CancelCheckout_ResumedRedirectMovesToCancelled(t *testing.T) {
	tw := newTestWizard()
	tw.withHistory(t, pendingRecord(MethodPaystack))
	tw.api.init = &backend.CheckoutInit{Reference: "ref-new", AuthorizationURL: "https://pay.example/ref-new"}
	_, err := tw.ResumePayment(context.Background(), "order-7")
	require.NoError(t, err)

	err = tw.CancelCheckout(context.Background(), "order-7", prompt.Answer(true))

	require.NoError(t, err)
	session := tw.Session()
	assert.Equal(t, StepCancelled, session.Step)
	assert.Empty(t, session.PaymentReference)
	assert.Empty(t, session.RecordID)

	_, err = tw.VerifyPayment(context.Background())
	assert.ErrorIs(t, err, ErrMissingReference)
	assert.Zero(t, tw.api.verifyCalls)
}

func TestWizard_CancelCheckout_OtherRecordKeepsPayment(t *testing.T) {
	tw := newTestWizard()
	other := pendingRecord(MethodCard)
	other.ID = "order-8"
	other.PaymentReference = "ref-other"
	tw.withHistory(t, pendingRecord(MethodCard), other)
	_, err := tw.ResumePayment(context.Background(), "order-7")
	require.NoError(t, err)

	err = tw.CancelCheckout(context.Background(), "order-8", prompt.Answer(true))

	require.NoError(t, err)
	session := tw.Session()
	assert.Equal(t, StepPayment, session.Step)
	assert.Equal(t, "ref-old", session.PaymentReference)
}

func TestWizard_CancelCheckout_LoadsHistoryWhenUnknown(t *testing.T) {
	tw := newTestWizard()
	tw.api.history = []backend.CheckoutRecord{pendingRecord(MethodCard)}

	err := tw.CancelCheckout(context.Background(), "order-7", prompt.Answer(true))

	require.NoError(t, err)
	assert.Equal(t, []string{"order-7"}, tw.api.cancelCalls)
	assert.Equal(t, backend.CheckoutCancelled, tw.History()[0].Status)

	tw.api.history = nil
	err = tw.CancelCheckout(context.Background(), "order-9", prompt.Answer(true))
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Len(t, tw.api.cancelCalls, 1)
}

func TestWizard_CancelCheckout_Failure(t *testing.T) {
	tw := newTestWizard()
	tw.withHistory(t, pendingRecord(MethodCard))
	tw.api.cancelErr = &backend.APIError{StatusCode: 500, Message: "Could not cancel"}

	err := tw.CancelCheckout(context.Background(), "order-7", prompt.Answer(true))

	assert.ErrorIs(t, err, ErrCancellationFailed)
	assert.Equal(t, backend.CheckoutPending, tw.History()[0].Status)
}

// ============================================
// History Tests
// ============================================

func TestWizard_LoadHistory_Replaces(t *testing.T) {
	tw := newTestWizard()
	tw.withHistory(t, pendingRecord(MethodCard))

	tw.api.history = nil
	history, err := tw.LoadHistory(context.Background())

	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, tw.History())
}
