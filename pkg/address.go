package pkg

import (
	"errors"
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
)

// maxAddressLen is the longest account address the cosmos address codec
// accepts.
const maxAddressLen = 255

// ValidatePrincipal checks that address is a bech32 account address with the
// given human readable prefix.
func ValidatePrincipal(address, prefix string) error {
	if address == "" {
		return errors.New("empty principal")
	}
	hrp, bz, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return err
	}
	if hrp != prefix {
		return fmt.Errorf("invalid bech32 prefix; expected %s, got %s", prefix, hrp)
	}

	switch {
	case len(bz) == 0:
		return errors.New("principal has no address bytes")
	case len(bz) > maxAddressLen:
		return fmt.Errorf("principal address length %d exceeds %d bytes", len(bz), maxAddressLen)
	}
	return nil
}

// NewPrincipal encodes raw account bytes as a bech32 principal.
func NewPrincipal(prefix string, bz []byte) (string, error) {
	if len(bz) == 0 {
		return "", errors.New("principal has no address bytes")
	}
	return bech32.ConvertAndEncode(prefix, bz)
}
