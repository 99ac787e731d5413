package types

import (
	"cmp"
	"fmt"
	"slices"
)

// AssetKind is a collateral asset accepted for staking.
type AssetKind string

const (
	// AssetDNT is the protocol token. It converts 1:1 into stake units.
	AssetDNT AssetKind = "DNT"
	// AssetSOL is the base settlement asset.
	AssetSOL  AssetKind = "SOL"
	AssetUSDC AssetKind = "USDC"
	AssetUSDT AssetKind = "USDT"
)

// SupportedAssets is the closed set of accepted collateral kinds, in the
// order used for deterministic tie breaking.
var SupportedAssets = []AssetKind{AssetDNT, AssetSOL, AssetUSDC, AssetUSDT}

func (a AssetKind) String() string {
	return string(a)
}

func (a AssetKind) IsSupported() bool {
	return slices.Contains(SupportedAssets, a)
}

func (a AssetKind) IsStable() bool {
	return a == AssetUSDC || a == AssetUSDT
}

// order returns the position of the asset in SupportedAssets, or
// len(SupportedAssets) for unknown kinds.
func (a AssetKind) order() int {
	if idx := slices.Index(SupportedAssets, a); idx >= 0 {
		return idx
	}
	return len(SupportedAssets)
}

func ParseAssetKind(s string) (AssetKind, error) {
	asset := AssetKind(s)
	if !asset.IsSupported() {
		return "", fmt.Errorf("invalid asset kind: %s", s)
	}
	return asset, nil
}

// CompareAssets orders asset kinds by their position in SupportedAssets.
func CompareAssets(a, b AssetKind) int {
	return cmp.Or(cmp.Compare(a.order(), b.order()), cmp.Compare(a, b))
}
