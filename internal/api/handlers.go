package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/example/technest/internal/api/middleware"
	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/command"
	"github.com/example/technest/internal/domain/cart"
	"github.com/example/technest/internal/domain/checkout"
	"github.com/example/technest/internal/domain/wishlist"
	"github.com/example/technest/internal/notify"
	"github.com/example/technest/internal/prompt"
	"github.com/example/technest/internal/query"
	"github.com/example/technest/internal/session"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	registry     *session.Registry
	log          logrus.FieldLogger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, registry *session.Registry, log logrus.FieldLogger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		registry:     registry,
		log:          log,
	}
}

// errorResponse is the body of every failed request. Cart is set when a cart
// mutation failed after changing the local cart; Prompt when the action
// needs the user's confirmation first.
type errorResponse struct {
	Error  string          `json:"error"`
	Prompt *prompt.Prompt  `json:"prompt,omitempty"`
	Cart   *query.CartView `json:"cart,omitempty"`
}

// statusFor maps domain and backend failures to HTTP status codes.
func statusFor(err error) int {
	var syncErr *cart.SyncError
	var apiErr *backend.APIError
	var urlErr *url.Error
	switch {
	case errors.Is(err, prompt.ErrUnanswered):
		return http.StatusPreconditionRequired
	case errors.Is(err, checkout.ErrMissingField),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, command.ErrInvalidRating),
		errors.Is(err, command.ErrEmptyComment),
		errors.Is(err, command.ErrInvalidDelta),
		errors.Is(err, wishlist.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrMissingReference),
		errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrNotCancellable),
		errors.Is(err, checkout.ErrNotResumable),
		errors.Is(err, checkout.ErrNoAuthorizationURL):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrRecordNotFound),
		errors.Is(err, query.ErrProductNotFound),
		errors.Is(err, query.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, checkout.ErrInitializationFailed),
		errors.Is(err, checkout.ErrVerificationFailed),
		errors.Is(err, checkout.ErrCancellationFailed),
		errors.Is(err, backend.ErrUnavailable),
		errors.As(err, &syncErr),
		errors.As(err, &apiErr),
		errors.As(err, &urlErr):
		return http.StatusBadGateway
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status and user-facing message.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.respondErrorWith(w, r, err, errorResponse{})
}

func (h *Handlers) respondErrorWith(w http.ResponseWriter, r *http.Request, err error, body errorResponse) {
	status := statusFor(err)
	body.Error = notify.Message(err)

	var required *prompt.RequiredError
	if errors.As(err, &required) {
		p := required.Prompt
		body.Prompt = &p
		body.Error = err.Error()
	}

	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"session_id": middleware.GetSessionID(r.Context()),
		}).Warn("request failed")
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, errorResponse{Error: message})
}

// decode reads an optional JSON body into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// storefront returns the session's storefront set by the middleware.
func storefront(w http.ResponseWriter, r *http.Request) (*session.Storefront, bool) {
	sf, ok := middleware.GetStorefront(r.Context())
	if !ok {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
	}
	return sf, ok
}

// optionalStorefront resolves the caller's storefront on public routes.
func (h *Handlers) optionalStorefront(r *http.Request) *session.Storefront {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || h.registry == nil {
		return nil
	}
	sf, _ := h.registry.Get(r.Context(), claims.SessionID)
	return sf
}

// Notification Handlers

func (h *Handlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sf.Notices.List())
}

func (h *Handlers) DismissNotification(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	if !sf.Notices.Dismiss(chi.URLParam(r, "id")) {
		respondJSONError(w, "Notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNavigation pops the oldest navigation the checkout wizard queued.
func (h *Handlers) GetNavigation(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	nav, found := sf.Navigation().Pop()
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, nav)
}

func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
