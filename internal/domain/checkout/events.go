package checkout

import (
	"time"

	"github.com/example/technest/internal/backend"
)

const (
	EventCheckoutInitialized = "CheckoutInitialized"
	EventPaymentRedirected   = "PaymentRedirected"
	EventCheckoutCompleted   = "CheckoutCompleted"
	EventCheckoutCancelled   = "CheckoutCancelled"
)

type CheckoutInitialized struct {
	SessionID       string    `json:"session_id"`
	Reference       string    `json:"reference"`
	PaymentMethod   string    `json:"payment_method"`
	ShippingAddress string    `json:"shipping_address"`
	Resumed         bool      `json:"resumed"`
	InitializedAt   time.Time `json:"initialized_at"`
}

type PaymentRedirected struct {
	SessionID        string    `json:"session_id"`
	Reference        string    `json:"reference"`
	AuthorizationURL string    `json:"authorization_url"`
	RedirectedAt     time.Time `json:"redirected_at"`
}

// CheckoutCompleted carries what the order confirmation e-mail needs.
type CheckoutCompleted struct {
	SessionID       string             `json:"session_id"`
	RecordID        string             `json:"record_id"`
	Reference       string             `json:"reference"`
	PaymentMethod   string             `json:"payment_method"`
	ShippingAddress string             `json:"shipping_address"`
	Items           []backend.CartLine `json:"items"`
	TotalPrice      int64              `json:"total_price"`
	CustomerEmail   string             `json:"customer_email,omitempty"`
	CustomerName    string             `json:"customer_name,omitempty"`
	CompletedAt     time.Time          `json:"completed_at"`
}

type CheckoutCancelled struct {
	SessionID   string    `json:"session_id"`
	RecordID    string    `json:"record_id"`
	Reference   string    `json:"reference"`
	CancelledAt time.Time `json:"cancelled_at"`
}
