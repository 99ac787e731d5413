package services

import (
	"cmp"
	"slices"

	sdkmath "cosmossdk.io/math"

	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

// releaseCollateral removes the share quantity/amount of every collateral
// kind from mix and returns what was removed. Each kind is floored, then the
// units lost to flooring are handed out one at a time to the kinds with the
// largest remainders, ties going to the earlier asset in SupportedAssets.
// Releasing the full amount empties the mix.
func releaseCollateral(mix map[types.AssetKind]uint64, quantity, amount uint64) map[types.AssetKind]uint64 {
	released := make(map[types.AssetKind]uint64)
	if quantity == 0 || amount == 0 {
		return released
	}

	if quantity >= amount {
		for asset, held := range mix {
			if held > 0 {
				released[asset] = held
			}
			delete(mix, asset)
		}
		return released
	}

	type share struct {
		asset     types.AssetKind
		remainder sdkmath.Int
	}

	q := sdkmath.NewIntFromUint64(quantity)
	a := sdkmath.NewIntFromUint64(amount)
	total := sdkmath.ZeroInt()
	floorSum := sdkmath.ZeroInt()
	shares := make([]share, 0, len(mix))

	for _, asset := range sortedAssets(mix) {
		held := sdkmath.NewIntFromUint64(mix[asset])
		if held.IsZero() {
			continue
		}
		exact := held.Mul(q)
		floor := exact.Quo(a)

		total = total.Add(held)
		floorSum = floorSum.Add(floor)
		released[asset] = floor.Uint64()
		shares = append(shares, share{asset: asset, remainder: exact.Mod(a)})
	}

	leftover := total.Mul(q).Quo(a).Sub(floorSum).Int64()
	slices.SortStableFunc(shares, func(x, y share) int {
		return cmp.Or(
			y.remainder.BigInt().Cmp(x.remainder.BigInt()),
			types.CompareAssets(x.asset, y.asset),
		)
	})
	for i := 0; i < len(shares) && int64(i) < leftover; i++ {
		released[shares[i].asset]++
	}

	for asset, units := range released {
		if units == 0 {
			delete(released, asset)
			continue
		}
		mix[asset] -= units
		if mix[asset] == 0 {
			delete(mix, asset)
		}
	}
	return released
}

// sortedAssets returns the keys of mix in SupportedAssets order. Unknown
// kinds sort last by name.
func sortedAssets(mix map[types.AssetKind]uint64) []types.AssetKind {
	assets := make([]types.AssetKind, 0, len(mix))
	for asset := range mix {
		assets = append(assets, asset)
	}
	slices.SortFunc(assets, types.CompareAssets)
	return assets
}
