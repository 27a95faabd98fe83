package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressKind is the account family an address belongs to.
type AddressKind uint8

const (
	KindUnknown AddressKind = iota
	KindLedger              // native Flow address, 8 bytes
	KindEVM                 // EVM address, 20 bytes
)

const (
	ledgerHexLen = 16
	evmHexLen    = 40
)

func (k AddressKind) String() string {
	switch k {
	case KindLedger:
		return "flow"
	case KindEVM:
		return "evm"
	default:
		return "unknown"
	}
}

// Address is a classified, normalized account address.
// The zero value is not a valid address; build one with ParseAddress.
type Address struct {
	kind AddressKind
	hex  string // lower-case, no prefix
}

// ParseAddress classifies s by its hex digit count and normalizes it.
// Both 0x-prefixed and bare input are accepted.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimSpace(s)
	body := raw
	if len(body) >= 2 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X') {
		body = body[2:]
	}

	var kind AddressKind
	switch len(body) {
	case ledgerHexLen:
		kind = KindLedger
	case evmHexLen:
		kind = KindEVM
	case 0:
		return Address{}, &InvalidAddressError{Input: s, Reason: "empty address"}
	default:
		return Address{}, &InvalidAddressError{
			Input:  s,
			Reason: fmt.Sprintf("unexpected length %d", len(body)),
		}
	}

	if _, err := hex.DecodeString(body); err != nil {
		return Address{}, &InvalidAddressError{Input: s, Reason: "non-hex character"}
	}
	if kind == KindEVM && !common.IsHexAddress(body) {
		return Address{}, &InvalidAddressError{Input: s, Reason: "invalid evm address"}
	}

	return Address{kind: kind, hex: strings.ToLower(body)}, nil
}

// MustParseAddress panics on invalid input. Use for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Kind returns the address family.
func (a Address) Kind() AddressKind { return a.kind }

// IsZero reports whether a was never parsed.
func (a Address) IsZero() bool { return a.kind == KindUnknown }

// Hex returns the normalized digits without the 0x prefix.
func (a Address) Hex() string { return a.hex }

// String returns the normalized 0x-prefixed form.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return "0x" + a.hex
}

// Key is a kind-qualified string usable as a map key.
func (a Address) Key() string {
	return a.kind.String() + ":" + a.hex
}

// Checksum returns the EIP-55 form for EVM addresses and String otherwise.
func (a Address) Checksum() string {
	if a.kind != KindEVM {
		return a.String()
	}
	return common.HexToAddress(a.hex).Hex()
}

// Equal compares kind and digits.
func (a Address) Equal(b Address) bool {
	return a.kind == b.kind && a.hex == b.hex
}

// EVM converts to a go-ethereum address. Only meaningful for KindEVM.
func (a Address) EVM() common.Address {
	return common.HexToAddress(a.hex)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
