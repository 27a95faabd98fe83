package domain

import (
	"github.com/shopspring/decimal"
)

type TokenType string

const (
	TokenCadence TokenType = "cadence"
	TokenEVM     TokenType = "evm"
)

// Token is one fungible asset snapshot for an (address, contract) pair.
// Snapshots are replaced wholesale on refresh.
type Token struct {
	ID                string          `json:"id"` // vault identifier or EVM contract address
	Type              TokenType       `json:"type"`
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	ContractAddress   string          `json:"contractAddress"`
	ContractName      string          `json:"contractName"`
	Decimals          int             `json:"decimals"`
	Balance           decimal.Decimal `json:"balance"`
	Price             decimal.Decimal `json:"price"`
	BalanceInCurrency decimal.Decimal `json:"balanceInCurrency"`
	Verified          bool            `json:"verified"`
	LogoURI           string          `json:"logoURI,omitempty"`

	VaultPath    string `json:"vaultPath,omitempty"`
	ReceiverPath string `json:"receiverPath,omitempty"`
	BalancePath  string `json:"balancePath,omitempty"`

	EVMAddress     string `json:"evmAddress,omitempty"`
	FlowIdentifier string `json:"flowIdentifier,omitempty"`

	// AvailableBalanceToUse is set on the FLOW token only: balance minus the
	// storage reservation.
	AvailableBalanceToUse decimal.Decimal `json:"availableBalanceToUse"`

	Custom     bool `json:"custom,omitempty"`
	Accessible bool `json:"accessible,omitempty"`
}

// IsFlow reports whether t is the native FLOW token.
func (t Token) IsFlow() bool {
	return t.ContractName == "FlowToken" || (t.Symbol == "FLOW" && t.Type == TokenCadence)
}

// Holdings is the raw activated-token response for one address.
type Holdings struct {
	Tokens                []Token
	AvailableBalanceToUse decimal.Decimal
}

// FlowToken returns the built-in FLOW token metadata for network.
func FlowToken(network Network) Token {
	addr := network.FlowTokenAddress()
	return Token{
		ID:              "A." + addr.Hex() + ".FlowToken.Vault",
		Type:            TokenCadence,
		Symbol:          "FLOW",
		Name:            "Flow",
		ContractAddress: addr.String(),
		ContractName:    "FlowToken",
		Decimals:        8,
		Verified:        true,
		LogoURI:         "https://cdn.jsdelivr.net/gh/FlowFans/flow-token-list@main/token-registry/A.1654653399040a61.FlowToken/logo.svg",
		VaultPath:       "/storage/flowTokenVault",
		ReceiverPath:    "/public/flowTokenReceiver",
		BalancePath:     "/public/flowTokenBalance",
		FlowIdentifier:  "A." + addr.Hex() + ".FlowToken.Vault",
	}
}
