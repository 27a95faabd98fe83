package domain

import (
	"fmt"
	"strings"
)

type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// SupportedNetworks is the set of networks a session loads accounts for.
var SupportedNetworks = []Network{Mainnet, Testnet}

// ParseNetwork accepts a network name case-insensitively.
func ParseNetwork(s string) (Network, error) {
	switch Network(strings.ToLower(strings.TrimSpace(s))) {
	case Mainnet:
		return Mainnet, nil
	case Testnet:
		return Testnet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, s)
}

func (n Network) String() string { return string(n) }

// FlowTokenAddress is where the FlowToken contract is deployed.
func (n Network) FlowTokenAddress() Address {
	if n == Testnet {
		return MustParseAddress("0x7e60df042a9c0868")
	}
	return MustParseAddress("0x1654653399040a61")
}
