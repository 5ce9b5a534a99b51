// Package dashboard renders the console home page counters.
package dashboard

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/machineskills/console/internal/backend"
)

// API is the part of the backend client read by the dashboard.
type API interface {
	ListProducts(ctx context.Context) ([]backend.Product, error)
	ListGalleryGroups(ctx context.Context, productType string) ([]backend.GalleryGroup, error)
	ListCenters(ctx context.Context) ([]backend.Center, error)
}

// Stats are the home page counters.
type Stats struct {
	Products int `json:"products"`
	Albums   int `json:"albums"`
	Centers  int `json:"centers"`
}

// Service loads Stats.
type Service struct {
	api   API
	group singleflight.Group
}

// NewService constructs a Service.
func NewService(api API) *Service {
	return &Service{api: api}
}

// Stats fetches every counter concurrently. Concurrent loads for the same
// backend token share one set of requests.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	key := backend.TokenFromContext(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.load(ctx)
	})
	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Stats{}, res.Err
		}
		return res.Val.(Stats), nil
	}
}

func (s *Service) load(ctx context.Context) (Stats, error) {
	var stats Stats
	albums := make([]int, len(backend.ProductTypes))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := s.api.ListProducts(ctx)
		stats.Products = len(products)
		return err
	})
	g.Go(func() error {
		centers, err := s.api.ListCenters(ctx)
		stats.Centers = len(centers)
		return err
	})
	for i, pt := range backend.ProductTypes {
		g.Go(func() error {
			groups, err := s.api.ListGalleryGroups(ctx, string(pt))
			albums[i] = len(groups)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	for _, n := range albums {
		stats.Albums += n
	}
	return stats, nil
}
