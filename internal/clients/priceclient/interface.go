package priceclient

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

//go:generate mockery --name=PricingInterface --output=../../../tests/mocks --outpkg=mocks --filename=mock_pricing_client.go
type PricingInterface interface {
	// GetPrice returns the number of DNT units one unit of asset is worth.
	GetPrice(ctx context.Context, asset types.AssetKind) (sdkmath.LegacyDec, error)
}
