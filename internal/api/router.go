package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/technest/internal/api/middleware"
	"github.com/example/technest/internal/auth"
	"github.com/example/technest/internal/session"
)

// RouterConfig is everything the HTTP surface needs.
type RouterConfig struct {
	Handlers        *Handlers
	SessionHandlers *SessionHandlers
	JWTService      *auth.JWTService
	Registry        *session.Registry
	Log             logrus.FieldLogger
	// Gatherer backs /metrics. Nil leaves the endpoint out.
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", Health)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Session tokens
	r.Post("/session", cfg.SessionHandlers.CreateSession)
	r.Post("/session/refresh", cfg.SessionHandlers.RefreshSession)

	// Public catalog; a valid token only adds wishlist marks.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalSessionMiddleware(cfg.JWTService))
		r.Get("/products", h.GetProducts)
		r.Get("/products/{id}/reviews", h.GetProductReviews)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(cfg.JWTService))
		r.Delete("/session", cfg.SessionHandlers.EndSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.StorefrontMiddleware(cfg.Registry))

			r.Post("/products/{id}/reviews", h.PostProductReview)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddToCart)
				r.Delete("/items/{productID}", h.RemoveFromCart)
				r.Post("/items/{productID}/increment", h.IncrementQuantity)
				r.Post("/items/{productID}/decrement", h.DecrementQuantity)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", h.GetCheckout)
				r.Post("/shipping", h.SubmitShipping)
				r.Post("/redirect", h.RedirectToPayment)
				r.Post("/verify", h.VerifyPayment)
				r.Post("/restart", h.RestartCheckout)
				r.Get("/history", h.GetCheckoutHistory)
				r.Post("/history/{id}/resume", h.ResumePayment)
				r.Post("/history/{id}/cancel", h.CancelCheckout)
				r.Get("/billing", h.GetBillingForm)
				r.Put("/billing", h.SaveBillingForm)
			})

			r.Get("/orders/{id}", h.GetOrder)

			r.Get("/wishlist", h.GetWishlist)
			r.Post("/wishlist/{productID}", h.AddToWishlist)
			r.Delete("/wishlist/{productID}", h.RemoveFromWishlist)

			r.Get("/notifications", h.GetNotifications)
			r.Delete("/notifications/{id}", h.DismissNotification)
			r.Get("/navigation", h.GetNavigation)
		})
	})

	return otelhttp.NewHandler(r, "technest-storefront")
}
