package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/technest/internal/command"
	"github.com/example/technest/internal/domain/checkout"
	"github.com/example/technest/internal/validation"
)

// CheckoutResponse is the wizard state with the methods a user can pick.
type CheckoutResponse struct {
	Session  checkout.Session         `json:"session"`
	Methods  []checkout.PaymentMethod `json:"methods"`
	Declined bool                     `json:"declined,omitempty"`
}

// BillingResponse is the persisted billing form and its field messages.
type BillingResponse struct {
	Form   validation.BillingForm `json:"form"`
	Errors validation.Errors      `json:"errors"`
	Valid  bool                   `json:"valid"`
}

func checkoutResponse(s checkout.Session) CheckoutResponse {
	return CheckoutResponse{Session: s, Methods: checkout.Methods}
}

// Checkout Handlers

func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(sf.Checkout.Session()))
}

func (h *Handlers) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	var cmd command.SubmitShipping
	if err := decode(r, &cmd); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s, err := h.cmdHandler.SubmitShipping(r.Context(), sf, cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(s))
}

// RedirectToPayment answers 428 with the prompt until the request carries
// the user's answer. The URL is also queued as a navigation.
func (h *Handlers) RedirectToPayment(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	var cmd command.RedirectToPayment
	if err := decode(r, &cmd); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	url, err := h.cmdHandler.RedirectToPayment(r.Context(), sf, cmd)
	if errors.Is(err, checkout.ErrPromptDeclined) {
		resp := checkoutResponse(sf.Checkout.Session())
		resp.Declined = true
		respondJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	record, err := h.cmdHandler.VerifyPayment(r.Context(), sf, command.VerifyPayment{})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.queryHandler.OrderView(*record))
}

func (h *Handlers) RestartCheckout(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	s := h.cmdHandler.RestartCheckout(r.Context(), sf, command.RestartCheckout{})
	respondJSON(w, http.StatusOK, checkoutResponse(s))
}

func (h *Handlers) GetCheckoutHistory(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	orders, err := h.queryHandler.CheckoutHistory(r.Context(), sf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) ResumePayment(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	cmd := command.ResumePayment{RecordID: chi.URLParam(r, "id")}
	s, err := h.cmdHandler.ResumePayment(r.Context(), sf, cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(s))
}

// CancelCheckout asks for confirmation the same way RedirectToPayment does.
func (h *Handlers) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	var cmd command.CancelCheckout
	if err := decode(r, &cmd); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.RecordID = chi.URLParam(r, "id")

	err := h.cmdHandler.CancelCheckout(r.Context(), sf, cmd)
	if errors.Is(err, checkout.ErrPromptDeclined) {
		resp := checkoutResponse(sf.Checkout.Session())
		resp.Declined = true
		respondJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(sf.Checkout.Session()))
}

// Billing form

func (h *Handlers) GetBillingForm(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	form, err := sf.BillingForm(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	errs := validation.ValidateBilling(form)
	respondJSON(w, http.StatusOK, BillingResponse{Form: form, Errors: errs, Valid: errs.Valid()})
}

// SaveBillingForm persists the form even when it is invalid so the user's
// input survives a reload. Field messages are returned alongside.
func (h *Handlers) SaveBillingForm(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	var form validation.BillingForm
	if err := decode(r, &form); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	errs, err := h.cmdHandler.SaveBillingForm(r.Context(), sf, command.SaveBillingForm{Form: form})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, BillingResponse{Form: form, Errors: errs, Valid: errs.Valid()})
}

// Orders

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	order, err := h.queryHandler.GetOrder(r.Context(), sf, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
