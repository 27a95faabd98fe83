package domain

// NFTCollection is a collection held by one address.
// Count is the on-chain total and sizes pagination.
type NFTCollection struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ContractName    string `json:"contractName"`
	ContractAddress string `json:"contractAddress"`
	Logo            string `json:"logo,omitempty"`
	Description     string `json:"description,omitempty"`
	Count           int    `json:"count"`
	EVMAddress      string `json:"evmAddress,omitempty"`
}

// NFT is one item of a collection.
type NFT struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	CollectionID    string `json:"collectionId"`
	ContractAddress string `json:"contractAddress"`
}

// NFTPage is one page of a collection listing. NextOffset is empty on the
// last page.
type NFTPage struct {
	NFTs       []NFT
	Collection *NFTCollection
	NextOffset string
	Total      int
}
