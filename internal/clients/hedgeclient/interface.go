package hedgeclient

import "context"

//go:generate mockery --name=HedgeInterface --output=../../../tests/mocks --outpkg=mocks --filename=mock_hedge_client.go
type HedgeInterface interface {
	// GetProfit returns the protocol profit realized in the window [from, to]
	// (unix seconds).
	GetProfit(ctx context.Context, from, to int64) (*ProfitReport, error)
	// GetExposure returns the current protocol wide net delta.
	GetExposure(ctx context.Context) (*ExposureReport, error)
	// GetPositionLosses returns the unrealized loss of every open position,
	// as a percentage of the position's collateral.
	GetPositionLosses(ctx context.Context) (*PositionLossReport, error)
}
