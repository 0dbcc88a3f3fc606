// Package product implements the Product Resolver (C3): priority-ordered
// region fallback over the upstream catalog, selecting the cheapest
// available SKU per name, following a DB-first/cache-fallback shape, with
// the price-comparison selection generalized from the crosslogic control
// plane's internal/scheduler/scheduler.go strategy pattern (lowest-price
// selection is a scoring strategy in the same shape as its
// LeastLoadedStrategy).
package product

import (
	"context"
	"fmt"
	"sort"
	"time"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/cache"
	orcherrors "novita-orchestrator/pkg/errors"
)

const cacheTTL = 5 * time.Minute

// defaultRegionPriority is the fallback order when the caller supplies no
// explicit region list (§4.3): lowest priority number first.
var defaultRegionPriority = []string{"AS-SGP-02", "CN-HK-01", "AS-IN-01"}

// Lister is the subset of the upstream client the resolver depends on.
type Lister interface {
	GetProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
}

// Resolver implements getOptimalProduct / getOptimalProductWithFallback.
type Resolver struct {
	upstream Lister
	cache    cache.Cache
}

// New builds a Resolver backed by a named cache from the Cache Manager.
func New(upstream Lister, cacheMgr *cache.Manager) *Resolver {
	c := cacheMgr.GetCache("product-resolver", cache.Options{
		Backend:    cache.BackendMemory,
		MaxSize:    500,
		DefaultTTL: cacheTTL,
	})
	return &Resolver{upstream: upstream, cache: c}
}

// Result is the {product, regionUsed} pair returned on success.
type Result struct {
	Product    model.Product
	RegionUsed string
}

// GetOptimalProduct resolves a single region, or the default priority list
// when region is empty.
func (r *Resolver) GetOptimalProduct(ctx context.Context, name, region string) (Result, error) {
	if region != "" {
		return r.GetOptimalProductWithFallback(ctx, name, region, []string{region})
	}
	return r.GetOptimalProductWithFallback(ctx, name, "", nil)
}

// GetOptimalProductWithFallback implements §4.3's full algorithm: try
// preferredRegion first, then the remaining candidate regions in priority
// order, selecting the cheapest available SKU in the first region with any.
func (r *Resolver) GetOptimalProductWithFallback(ctx context.Context, name, preferredRegion string, regions []string) (Result, error) {
	candidates := buildRegionOrder(preferredRegion, regions)

	for _, region := range candidates {
		cacheKey := "optimal:" + name + ":" + region
		if v, ok := r.cache.Get(cacheKey); ok {
			if res, ok := v.(Result); ok {
				return res, nil
			}
		}

		products, err := r.upstream.GetProducts(ctx, model.ProductFilter{
			ProductName:   name,
			Region:        region,
			BillingMethod: "spot",
		})
		if err != nil {
			return Result{}, err
		}
		available := filterAvailable(products)
		if len(available) == 0 {
			continue
		}
		best := selectCheapest(available)
		result := Result{Product: best, RegionUsed: region}
		r.cache.Set(cacheKey, result, cacheTTL)
		return result, nil
	}

	return Result{}, orcherrors.New(orcherrors.KindNotFound,
		fmt.Sprintf("No optimal product found for %s in any available region", name))
}

// ClearCache wipes every cached optimal-product lookup.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

func buildRegionOrder(preferredRegion string, regions []string) []string {
	base := defaultRegionPriority
	if len(regions) > 0 {
		base = regions
	}

	order := make([]string, 0, len(base)+1)
	seen := make(map[string]bool)
	if preferredRegion != "" {
		order = append(order, preferredRegion)
		seen[preferredRegion] = true
	}
	for _, region := range base {
		if !seen[region] {
			order = append(order, region)
			seen[region] = true
		}
	}
	return order
}

func filterAvailable(products []model.Product) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.Availability == model.AvailabilityAvailable {
			out = append(out, p)
		}
	}
	return out
}

// selectCheapest implements the (1) spotPrice (2) onDemandPrice (3) id
// tiebreak ordering from §4.3.
func selectCheapest(products []model.Product) model.Product {
	sorted := make([]model.Product, len(products))
	copy(sorted, products)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.SpotPrice != b.SpotPrice {
			return a.SpotPrice < b.SpotPrice
		}
		if a.OnDemandPrice != b.OnDemandPrice {
			return a.OnDemandPrice < b.OnDemandPrice
		}
		return a.ID < b.ID
	})
	return sorted[0]
}
