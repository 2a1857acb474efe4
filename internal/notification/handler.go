package notification

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/technest/internal/domain/checkout"
	"github.com/example/technest/internal/email"
	"github.com/example/technest/internal/infrastructure/store"
	"github.com/example/technest/internal/validation"
)

// Sender delivers order confirmations. *email.Service implements it.
type Sender interface {
	SendOrderConfirmation(to string, order email.OrderConfirmation) error
}

// Handler processes storefront events for sending notifications
type Handler struct {
	sender Sender
	state  store.StateStore
	log    logrus.FieldLogger
}

// NewHandler creates a new notification handler. state may be nil when
// events always carry the customer's e-mail.
func NewHandler(sender Sender, state store.StateStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		sender: sender,
		state:  state,
		log:    log,
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.log.WithError(err).Warn("failed to unmarshal event")
		return err
	}

	// Only completed checkouts send mail
	if event.EventType == checkout.EventCheckoutCompleted {
		return h.handleCheckoutCompleted(ctx, event)
	}
	return nil
}

func (h *Handler) handleCheckoutCompleted(ctx context.Context, event store.Event) error {
	var e checkout.CheckoutCompleted
	if err := json.Unmarshal(event.Data, &e); err != nil {
		h.log.WithError(err).Warn("failed to unmarshal CheckoutCompleted event")
		return err
	}

	log := h.log.WithFields(logrus.Fields{"session_id": e.SessionID, "record_id": e.RecordID})
	log.Info("processing CheckoutCompleted event")

	to, name := e.CustomerEmail, e.CustomerName
	if to == "" {
		to, name = h.contactFromBillingForm(ctx, log, e.SessionID)
	}
	if to == "" {
		log.Info("no e-mail captured for session, skipping confirmation")
		return nil
	}

	items := make([]email.OrderItem, 0, len(e.Items))
	for _, line := range e.Items {
		items = append(items, email.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			Price:     line.Product.Price,
		})
	}

	err := h.sender.SendOrderConfirmation(to, email.OrderConfirmation{
		RecordID:        e.RecordID,
		Reference:       e.Reference,
		CustomerName:    name,
		ShippingAddress: e.ShippingAddress,
		PaymentMethod:   e.PaymentMethod,
		Items:           items,
		Total:           e.TotalPrice,
	})
	if err != nil {
		log.WithError(err).Error("failed to send order confirmation")
		return err
	}

	log.Info("order confirmation e-mail sent")
	return nil
}

// contactFromBillingForm falls back to the session's persisted billing form.
func (h *Handler) contactFromBillingForm(ctx context.Context, log logrus.FieldLogger, sessionID string) (string, string) {
	if h.state == nil || sessionID == "" {
		return "", ""
	}
	var form validation.BillingForm
	found, err := h.state.Load(ctx, sessionID, store.KeyBillingForm, &form)
	if err != nil {
		log.WithError(err).Warn("failed to load billing form")
		return "", ""
	}
	if !found || !validation.IsEmail(strings.TrimSpace(form.Email)) {
		return "", ""
	}
	return strings.TrimSpace(form.Email), strings.TrimSpace(form.FirstName + " " + form.LastName)
}
