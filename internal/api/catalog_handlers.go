package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/technest/internal/command"
)

// Product Handlers

// GetProducts is public. Signed-in sessions also get their wishlist marks.
func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queryHandler.ListProducts(r.Context(), h.optionalStorefront(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProductReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.queryHandler.ProductReviews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

func (h *Handlers) PostProductReview(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	var cmd command.PostReview
	if err := decode(r, &cmd); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.ProductID = chi.URLParam(r, "id")

	review, err := h.cmdHandler.PostReview(r.Context(), sf, cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, review)
}

// Wishlist Handlers

func (h *Handlers) GetWishlist(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	items, err := h.queryHandler.GetWishlist(r.Context(), sf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	items, err := h.cmdHandler.AddToWishlist(r.Context(), sf, command.AddToWishlist{ProductID: chi.URLParam(r, "productID")})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	sf, ok := storefront(w, r)
	if !ok {
		return
	}
	items, err := h.cmdHandler.RemoveFromWishlist(r.Context(), sf, command.RemoveFromWishlist{ProductID: chi.URLParam(r, "productID")})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}
