package domain

import "github.com/shopspring/decimal"

// AccountInfo is the balance and storage state of a ledger account.
type AccountInfo struct {
	Address          Address         `json:"address"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	StorageUsed      uint64          `json:"storageUsed"`
	StorageCapacity  uint64          `json:"storageCapacity"`
	StorageFlow      decimal.Decimal `json:"storageFlow"`
}

// CountInfo is the flow balance and NFT count summary of one address.
type CountInfo struct {
	FlowBalance decimal.Decimal `json:"flowBalance"`
	NFTCount    uint            `json:"nftCount"`
}

// Less orders by flow balance, then NFT count.
func (c CountInfo) Less(o CountInfo) bool {
	if cmp := c.FlowBalance.Cmp(o.FlowBalance); cmp != 0 {
		return cmp < 0
	}
	return c.NFTCount < o.NFTCount
}
