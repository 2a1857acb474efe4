package checkout

import (
	"errors"
	"fmt"

	"github.com/example/technest/internal/backend"
)

const AggregateType = "Checkout"

type Step string

const (
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
	StepCancelled    Step = "cancelled"
)

var (
	ErrMissingField         = errors.New("missing required field")
	ErrInitializationFailed = errors.New("initialization failed")
	ErrNoAuthorizationURL   = errors.New("no authorization url for this payment")
	ErrPromptDeclined       = errors.New("prompt declined")
	ErrMissingReference     = errors.New("missing payment reference")
	ErrVerificationFailed   = errors.New("verification failed")
	ErrRecordNotFound       = errors.New("checkout record not found")
	ErrNotResumable         = errors.New("only pending checkouts can be resumed")
	ErrNotCancellable       = errors.New("only pending checkouts can be cancelled")
	ErrCancellationFailed   = errors.New("cancellation failed")
	ErrInvalidTransition    = errors.New("invalid checkout step transition")
)

// validTransitions defines allowed step changes
var validTransitions = map[Step][]Step{
	StepShipping:     {StepPayment, StepCancelled},
	StepPayment:      {StepConfirmation, StepShipping, StepCancelled},
	StepConfirmation: {StepShipping},
	StepCancelled:    {StepShipping},
}

// CanTransitionTo checks if the wizard can move from s to target
func (s Step) CanTransitionTo(target Step) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func transitionError(from, to Step) error {
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
}

type PaymentMethod string

const (
	MethodCard           PaymentMethod = "card"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	MethodPaystack       PaymentMethod = "paystack"
)

// Methods lists the supported payment methods in display order.
var Methods = []PaymentMethod{MethodCard, MethodBankTransfer, MethodCashOnDelivery, MethodPaystack}

func (m PaymentMethod) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// IsRedirect reports whether the method completes on the processor's own page.
// Authorization URLs for these methods are single use.
func (m PaymentMethod) IsRedirect() bool {
	return m == MethodPaystack
}

// Session is the in-flight wizard state. It is not persisted.
type Session struct {
	Step             Step          `json:"step"`
	ShippingAddress  string        `json:"shippingAddress"`
	PaymentMethod    PaymentMethod `json:"paymentMethod"`
	PaymentReference string        `json:"paymentReference"`
	AuthorizationURL string        `json:"authorizationUrl,omitempty"`
	// RecordID is the history record being paid, when known. A resumed redirect
	// payment holds a new reference for the same record.
	RecordID string `json:"recordId,omitempty"`
	// LastOrderID is the record confirmed by the latest successful verification.
	LastOrderID string `json:"lastOrderId,omitempty"`
}

func newSession() Session {
	return Session{Step: StepShipping}
}

func (s *Session) transition(to Step) error {
	if !s.Step.CanTransitionTo(to) {
		return transitionError(s.Step, to)
	}
	s.Step = to
	return nil
}

func (s *Session) clearPayment() {
	s.PaymentReference = ""
	s.AuthorizationURL = ""
	s.RecordID = ""
}

// holds reports whether the session is paying for record.
func (s Session) holds(record backend.CheckoutRecord) bool {
	if s.RecordID != "" {
		return s.RecordID == record.ID
	}
	return record.PaymentReference != "" && s.PaymentReference == record.PaymentReference
}
