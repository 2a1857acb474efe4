package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/technest/internal/command"
	"github.com/example/technest/internal/domain/cart"
	"github.com/example/technest/internal/session"
)

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.queryHandler.GetCart(sf))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToCart
	if err := decode(r, &cmd); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.mutateCart(w, r, func(ctx context.Context, sf *session.Storefront) (cart.Cart, error) {
		return h.cmdHandler.AddToCart(ctx, sf, cmd)
	})
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cmd := command.RemoveFromCart{ProductID: chi.URLParam(r, "productID")}
	h.mutateCart(w, r, func(ctx context.Context, sf *session.Storefront) (cart.Cart, error) {
		return h.cmdHandler.RemoveFromCart(ctx, sf, cmd)
	})
}

func (h *Handlers) IncrementQuantity(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, 1)
}

func (h *Handlers) DecrementQuantity(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, -1)
}

func (h *Handlers) changeQuantity(w http.ResponseWriter, r *http.Request, delta int) {
	cmd := command.ChangeQuantity{ProductID: chi.URLParam(r, "productID"), Delta: delta}
	h.mutateCart(w, r, func(ctx context.Context, sf *session.Storefront) (cart.Cart, error) {
		return h.cmdHandler.ChangeQuantity(ctx, sf, cmd)
	})
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(ctx context.Context, sf *session.Storefront) (cart.Cart, error) {
		return h.cmdHandler.ClearCart(ctx, sf, command.ClearCart{})
	})
}

// mutateCart runs a cart command and responds with the resulting cart. A
// failed sync still returns the cart the session now holds.
func (h *Handlers) mutateCart(w http.ResponseWriter, r *http.Request, run func(context.Context, *session.Storefront) (cart.Cart, error)) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	c, err := run(r.Context(), sf)
	view := h.queryHandler.CartView(c)
	if err != nil {
		h.respondErrorWith(w, r, err, errorResponse{Cart: &view})
		return
	}
	respondJSON(w, http.StatusOK, view)
}
