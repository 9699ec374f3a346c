package serve

import (
	"context"
	"time"

	"github.com/opst/mlreg/cmd/mlreg/models"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// LoadFunc loads the model at uri.
type LoadFunc func(ctx context.Context, uri string) (*models.Loaded, error)

// Predictors holds loaded models for a while.
//
// Models are loaded again after ttl, so stage changes in the registry reach the server.
type Predictors struct {
	load  LoadFunc
	ttl   time.Duration
	cache *gocache.Cache
	group singleflight.Group
}

func NewPredictors(load LoadFunc, ttl time.Duration) *Predictors {
	return &Predictors{
		load:  load,
		ttl:   ttl,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Get returns the model at uri, from cache if fresh.
//
// Concurrent misses for the same uri share one load.
func (p *Predictors) Get(ctx context.Context, uri string) (*models.Loaded, error) {
	if v, ok := p.cache.Get(uri); ok {
		if l, ok := v.(*models.Loaded); ok {
			return l, nil
		}
	}

	// the load is shared by every caller waiting for uri, not bound to the first one.
	lctx := context.WithoutCancel(ctx)
	v, err, _ := p.group.Do(uri, func() (any, error) {
		l, err := p.load(lctx, uri)
		if err != nil {
			return nil, err
		}
		p.cache.Set(uri, l, p.ttl)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Loaded), nil
}

// Forget drops the model at uri from cache.
func (p *Predictors) Forget(uri string) {
	p.cache.Delete(uri)
}
