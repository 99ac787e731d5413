package hedgeclient

import (
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// ProfitReport splits protocol profit into funding capture and vault
// arbitrage. When IsRate is set both components are per second amounts.
type ProfitReport struct {
	FundingProfit uint64 `json:"funding_profit"`
	VaultProfit   uint64 `json:"vault_profit"`
	IsRate        bool   `json:"is_rate"`
}

// Total returns the profit realized over a window of the given length.
func (p *ProfitReport) Total(windowSeconds int64) (uint64, error) {
	total := sdkmath.NewIntFromUint64(p.FundingProfit).Add(sdkmath.NewIntFromUint64(p.VaultProfit))
	if p.IsRate {
		if windowSeconds <= 0 {
			return 0, nil
		}
		total = total.Mul(sdkmath.NewInt(windowSeconds))
	}
	if !total.IsUint64() {
		return 0, fmt.Errorf("profit %s overflows uint64", total)
	}
	return total.Uint64(), nil
}

// ExposureReport is the hedge engine view of protocol delta. DeltaPerUnit is
// the exposure removed per staked unit unwound.
type ExposureReport struct {
	NetDelta     int64  `json:"net_delta"`
	DeltaPerUnit uint64 `json:"delta_per_unit"`
}

// Magnitude returns |NetDelta| without overflowing on math.MinInt64.
func (e *ExposureReport) Magnitude() uint64 {
	if e.NetDelta == math.MinInt64 {
		return uint64(math.MaxInt64) + 1
	}
	if e.NetDelta < 0 {
		return uint64(-e.NetDelta)
	}
	return uint64(e.NetDelta)
}

// UnitDelta returns DeltaPerUnit, defaulting to 1.
func (e *ExposureReport) UnitDelta() uint64 {
	if e.DeltaPerUnit == 0 {
		return 1
	}
	return e.DeltaPerUnit
}

// PositionLoss is the unrealized loss of the hedge position backing one
// staking account.
type PositionLoss struct {
	Owner       string `json:"owner"`
	LossPercent uint64 `json:"loss_percent"`
}

type PositionLossReport struct {
	Positions []PositionLoss `json:"positions"`
}

// Exceeding returns the positions whose loss is strictly above maxPercent,
// deduplicated by owner keeping the largest loss.
func (r *PositionLossReport) Exceeding(maxPercent uint64) []PositionLoss {
	worst := make(map[string]int)
	var out []PositionLoss
	for _, p := range r.Positions {
		if p.Owner == "" || p.LossPercent <= maxPercent {
			continue
		}
		if i, ok := worst[p.Owner]; ok {
			out[i].LossPercent = max(out[i].LossPercent, p.LossPercent)
			continue
		}
		worst[p.Owner] = len(out)
		out = append(out, p)
	}
	return out
}
