package product

import (
	"context"
	"testing"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	byRegion map[string][]model.Product
	calls    []string
}

func (f *fakeLister) GetProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	f.calls = append(f.calls, filter.Region)
	return f.byRegion[filter.Region], nil
}

func newResolver(lister Lister) *Resolver {
	return New(lister, cache.NewManager(nil, false))
}

func TestResolver_SelectsCheapestBySpotPrice(t *testing.T) {
	lister := &fakeLister{byRegion: map[string][]model.Product{
		"AS-SGP-02": {
			{ID: "p1", SpotPrice: 0.5, OnDemandPrice: 1.0, Availability: model.AvailabilityAvailable},
			{ID: "p2", SpotPrice: 0.3, OnDemandPrice: 1.2, Availability: model.AvailabilityAvailable},
		},
	}}
	r := newResolver(lister)
	res, err := r.GetOptimalProduct(t.Context(), "rtx-4090", "")
	require.NoError(t, err)
	assert.Equal(t, "p2", res.Product.ID)
	assert.Equal(t, "AS-SGP-02", res.RegionUsed)
}

func TestResolver_TieBreaksOnOnDemandThenID(t *testing.T) {
	lister := &fakeLister{byRegion: map[string][]model.Product{
		"AS-SGP-02": {
			{ID: "p2", SpotPrice: 0.3, OnDemandPrice: 1.0, Availability: model.AvailabilityAvailable},
			{ID: "p1", SpotPrice: 0.3, OnDemandPrice: 1.0, Availability: model.AvailabilityAvailable},
		},
	}}
	r := newResolver(lister)
	res, err := r.GetOptimalProduct(t.Context(), "rtx-4090", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", res.Product.ID)
}

func TestResolver_FallsBackAcrossRegions(t *testing.T) {
	lister := &fakeLister{byRegion: map[string][]model.Product{
		"AS-SGP-02": {},
		"CN-HK-01":  {{ID: "p3", SpotPrice: 0.2, Availability: model.AvailabilityAvailable}},
	}}
	r := newResolver(lister)
	res, err := r.GetOptimalProduct(t.Context(), "rtx-4090", "")
	require.NoError(t, err)
	assert.Equal(t, "p3", res.Product.ID)
	assert.Equal(t, "CN-HK-01", res.RegionUsed)
	assert.Equal(t, []string{"AS-SGP-02", "CN-HK-01"}, lister.calls)
}

func TestResolver_PreferredRegionTriedFirst(t *testing.T) {
	lister := &fakeLister{byRegion: map[string][]model.Product{
		"AS-IN-01": {{ID: "p4", SpotPrice: 0.1, Availability: model.AvailabilityAvailable}},
	}}
	r := newResolver(lister)
	res, err := r.GetOptimalProductWithFallback(t.Context(), "rtx-4090", "AS-IN-01", nil)
	require.NoError(t, err)
	assert.Equal(t, "p4", res.Product.ID)
	assert.Equal(t, "AS-IN-01", lister.calls[0])
}

func TestResolver_NoAvailableProductInAnyRegion(t *testing.T) {
	lister := &fakeLister{byRegion: map[string][]model.Product{}}
	r := newResolver(lister)
	_, err := r.GetOptimalProduct(t.Context(), "rtx-4090", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No optimal product found for rtx-4090")
}

func TestResolver_CachesSuccessfulLookup(t *testing.T) {
	lister := &fakeLister{byRegion: map[string][]model.Product{
		"AS-SGP-02": {{ID: "p1", SpotPrice: 0.5, Availability: model.AvailabilityAvailable}},
	}}
	r := newResolver(lister)
	_, err := r.GetOptimalProduct(t.Context(), "rtx-4090", "")
	require.NoError(t, err)
	_, err = r.GetOptimalProduct(t.Context(), "rtx-4090", "")
	require.NoError(t, err)
	assert.Equal(t, 1, len(lister.calls))
}

func TestResolver_ClearCacheForcesRefetch(t *testing.T) {
	lister := &fakeLister{byRegion: map[string][]model.Product{
		"AS-SGP-02": {{ID: "p1", SpotPrice: 0.5, Availability: model.AvailabilityAvailable}},
	}}
	r := newResolver(lister)
	_, _ = r.GetOptimalProduct(t.Context(), "rtx-4090", "")
	r.ClearCache()
	_, _ = r.GetOptimalProduct(t.Context(), "rtx-4090", "")
	assert.Equal(t, 2, len(lister.calls))
}
