package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fjod/go_checkout/domain"
	"golang.org/x/sync/singleflight"
)

// Service is the cart store consumed by the saga and the HTTP surface:
// read-through cache over the repository with write-path invalidation.
type Service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group // prevents cache stampede
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// GetCart returns the customer's cart, or an empty cart if none exists yet.
func (s *Service) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(customerID, func() (interface{}, error) {

		cached, err := s.cache.Get(ctx, customerID)
		if err == nil {
			return cached, nil
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cart cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, customerID)
		if errors.Is(errGet, domain.ErrCartNotFound) {
			return &domain.Cart{
				CustomerID: customerID,
				CreatedAt:  time.Now(),
				UpdatedAt:  time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), customerID, cart); errSet != nil {
				log.Printf("cart cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *Service) AddLine(ctx context.Context, customerID string, line domain.CartLine) error {
	if err := s.repo.AddLine(ctx, customerID, line); err != nil {
		log.Printf("cart add line error: %v", err)
		return err
	}

	s.invalidate(customerID)
	return nil
}

func (s *Service) RemoveLine(ctx context.Context, customerID string, sku string) error {
	if err := s.repo.RemoveLine(ctx, customerID, sku); err != nil {
		log.Printf("cart remove line error: %v", err)
		return err
	}

	s.invalidate(customerID)
	return nil
}

// ClearCart removes the customer's cart. Clearing an already-empty cart is a
// no-op success.
func (s *Service) ClearCart(ctx context.Context, customerID string) error {
	if err := s.repo.DeleteCart(ctx, customerID); err != nil {
		log.Printf("cart delete error: %v", err)
		return err
	}

	s.invalidate(customerID)
	return nil
}

func (s *Service) invalidate(customerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, customerID); err != nil {
		log.Printf("cart cache invalidate error: %v", err)
	}
}
