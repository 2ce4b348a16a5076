package domain

import (
	"errors"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Address identifies an account or an asset contract.
// It is a 20-byte value printed as 0x-prefixed big-endian hex.
type Address util.Uint160

// NativeAsset is the reserved sentinel identifying the chain's native value unit.
var NativeAsset = Address{}

// NativeDecimals is the fixed precision of the native value unit.
const NativeDecimals int32 = 18

// ParseAddress parses a 0x-prefixed (or bare) 40 character hex address
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return Address{}, errors.New("address cannot be empty")
	}

	u, err := util.Uint160DecodeStringBE(strings.ToLower(trimmed))
	if err != nil {
		return Address{}, errors.New("invalid address: " + s)
	}
	return Address(u), nil
}

// ParseAsset parses an asset identifier; an empty string selects the native asset
func ParseAsset(s string) (Address, error) {
	if strings.TrimSpace(s) == "" {
		return NativeAsset, nil
	}
	return ParseAddress(s)
}

// String returns the 0x-prefixed big-endian hex form
func (a Address) String() string {
	return "0x" + util.Uint160(a).StringBE()
}

// IsNative reports whether a is the native asset sentinel
func (a Address) IsNative() bool {
	return a == NativeAsset
}

// MarshalText implements encoding.TextMarshaler
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
