package repositories

import (
	"context"

	"tourbackend/internal/domain/models"
	"tourbackend/internal/kv"
)

const pricingKey = "pricing_config"

type PricingRepository struct {
	Store kv.Store
}

// Get returns the stored pricing or the defaults when none was saved.
func (r PricingRepository) Get(ctx context.Context) (models.PricingConfig, error) {
	p, err := getJSON[models.PricingConfig](ctx, r.Store, pricingKey)
	if isNotFound(err) {
		return models.DefaultPricing(), nil
	}
	return p, err
}

func (r PricingRepository) Put(ctx context.Context, p models.PricingConfig) error {
	return putJSON(ctx, r.Store, pricingKey, p)
}
