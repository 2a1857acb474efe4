package wishlist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/example/technest/internal/backend"
)

var ErrInvalidProduct = errors.New("product_id is required")

// Service holds one session's wishlist. Changes are applied locally and rolled
// back when the backend rejects them.
type Service struct {
	mu    sync.Mutex
	items []backend.Product

	api backend.WishlistAPI
	log logrus.FieldLogger
}

func NewService(api backend.WishlistAPI, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{api: api, log: log}
}

// Load replaces the local wishlist with the backend's.
func (s *Service) Load(ctx context.Context) ([]backend.Product, error) {
	items, err := s.api.GetWishlist(ctx)
	if err != nil {
		return s.Items(), fmt.Errorf("failed to load wishlist: %w", err)
	}
	s.mu.Lock()
	s.items = append([]backend.Product(nil), items...)
	s.mu.Unlock()
	return s.Items(), nil
}

func (s *Service) Items() []backend.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Product{}, s.items...)
}

func (s *Service) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(productID) >= 0
}

func (s *Service) indexOf(productID string) int {
	for i, p := range s.items {
		if p.ID == productID {
			return i
		}
	}
	return -1
}

// Add is idempotent: a product already listed is not sent again.
func (s *Service) Add(ctx context.Context, product backend.Product) ([]backend.Product, error) {
	if product.ID == "" {
		return s.Items(), ErrInvalidProduct
	}

	s.mu.Lock()
	if s.indexOf(product.ID) >= 0 {
		s.mu.Unlock()
		return s.Items(), nil
	}
	s.items = append(s.items, product)
	s.mu.Unlock()

	if err := s.api.AddToWishlist(ctx, product.ID); err != nil {
		s.mu.Lock()
		if i := s.indexOf(product.ID); i >= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		}
		s.mu.Unlock()
		s.log.WithError(err).WithField("product_id", product.ID).Warn("failed to add to wishlist")
		return s.Items(), fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return s.Items(), nil
}

func (s *Service) Remove(ctx context.Context, productID string) ([]backend.Product, error) {
	if productID == "" {
		return s.Items(), ErrInvalidProduct
	}

	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return s.Items(), nil
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.mu.Unlock()

	if err := s.api.RemoveFromWishlist(ctx, productID); err != nil {
		s.mu.Lock()
		if s.indexOf(productID) < 0 {
			pos := min(i, len(s.items))
			s.items = append(s.items[:pos:pos], append([]backend.Product{removed}, s.items[pos:]...)...)
		}
		s.mu.Unlock()
		s.log.WithError(err).WithField("product_id", productID).Warn("failed to remove from wishlist")
		return s.Items(), fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return s.Items(), nil
}

// Toggle adds the product when absent and removes it otherwise. It reports
// whether the product is listed afterwards.
func (s *Service) Toggle(ctx context.Context, product backend.Product) (bool, error) {
	if s.Contains(product.ID) {
		_, err := s.Remove(ctx, product.ID)
		return err != nil, err
	}
	_, err := s.Add(ctx, product)
	return err == nil, err
}
