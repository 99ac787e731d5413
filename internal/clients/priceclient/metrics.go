package priceclient

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

type priceClientWithMetrics struct {
	pricing PricingInterface
}

func NewPriceClientWithMetrics(pricing PricingInterface) *priceClientWithMetrics {
	return &priceClientWithMetrics{pricing: pricing}
}

func (p *priceClientWithMetrics) GetPrice(ctx context.Context, asset types.AssetKind) (sdkmath.LegacyDec, error) {
	startTime := time.Now()
	price, err := p.pricing.GetPrice(ctx, asset)
	metrics.RecordFeedClientLatency(time.Since(startTime), "pricing", "GetPrice", err != nil)
	return price, err
}
