package instance

import (
	"context"

	"novita-orchestrator/internal/product"
)

// productAdapter satisfies ProductResolver by translating product.Result
// (the concrete C3 return shape) into C8's decoupled ProductResult.
type productAdapter struct {
	resolver *product.Resolver
}

// NewProductAdapter wraps a C3 *product.Resolver as a ProductResolver.
func NewProductAdapter(resolver *product.Resolver) ProductResolver {
	return &productAdapter{resolver: resolver}
}

func (a *productAdapter) GetOptimalProduct(ctx context.Context, name, region string) (ProductResult, error) {
	res, err := a.resolver.GetOptimalProduct(ctx, name, region)
	if err != nil {
		return ProductResult{}, err
	}
	return ProductResult{ProductID: res.Product.ID, Region: res.RegionUsed}, nil
}
