package types

type LiquidationReason string

const (
	ReasonRiskThresholdExceeded LiquidationReason = "RiskThresholdExceeded"
	ReasonMaxLossExceeded       LiquidationReason = "MaxLossExceeded"
)

func (r LiquidationReason) String() string {
	return string(r)
}
