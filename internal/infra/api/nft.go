package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vietddude/walletsync/internal/core/domain"
)

type collectionInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ContractName    string `json:"contractName"`
	ContractAddress string `json:"address"`
	Logo            string `json:"logo"`
	Description     string `json:"description"`
	EVMAddress      string `json:"evmAddress"`
}

func (ci collectionInfo) toDomain(count int) domain.NFTCollection {
	return domain.NFTCollection{
		ID:              ci.ID,
		Name:            ci.Name,
		ContractName:    ci.ContractName,
		ContractAddress: ci.ContractAddress,
		Logo:            ci.Logo,
		Description:     ci.Description,
		EVMAddress:      ci.EVMAddress,
		Count:           count,
	}
}

type collectionEntry struct {
	Collection collectionInfo `json:"collection"`
	Count      int            `json:"count"`
}

type nftItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Thumbnail       string `json:"thumbnail"`
	ContractAddress string `json:"contractAddress"`
}

type collectionListResponse struct {
	NFTs       []nftItem       `json:"nfts"`
	Collection *collectionInfo `json:"collection"`
	NFTCount   int             `json:"nftCount"`
	Offset     json.RawMessage `json:"offset"`
}

func nftPaths(kind domain.AddressKind) (collections, list string) {
	if kind == domain.KindEVM {
		return "v3/evm/nft/collections", "v3/evm/nft/collectionList"
	}
	return "v2/nft/collections", "v2/nft/collectionList"
}

// NFTCollections lists the collections held by addr with item counts.
func (c *Client) NFTCollections(ctx context.Context, addr domain.Address, network domain.Network) ([]domain.NFTCollection, error) {
	path, _ := nftPaths(addr.Kind())
	q := url.Values{}
	q.Set("address", addr.String())
	q.Set("network", string(network))

	var resp []collectionEntry
	if err := c.getJSON(ctx, "nft_collections", path, q, &resp); err != nil {
		return nil, fmt.Errorf("fetch nft collections: %w", err)
	}

	out := make([]domain.NFTCollection, 0, len(resp))
	for _, e := range resp {
		out = append(out, e.Collection.toDomain(e.Count))
	}
	return out, nil
}

// NFTCollectionPage fetches one page of a collection. offset is a numeric
// offset for ledger addresses and an opaque cursor for EVM addresses.
func (c *Client) NFTCollectionPage(
	ctx context.Context,
	addr domain.Address,
	network domain.Network,
	collectionID, offset string,
	limit int,
) (*domain.NFTPage, error) {
	_, path := nftPaths(addr.Kind())
	q := url.Values{}
	q.Set("address", addr.String())
	q.Set("collectionIdentifier", collectionID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("network", string(network))
	if offset != "" {
		q.Set("offset", offset)
	}

	var resp collectionListResponse
	if err := c.getJSON(ctx, "nft_collection_list", path, q, &resp); err != nil {
		return nil, fmt.Errorf("fetch nft page: %w", err)
	}

	page := &domain.NFTPage{
		NextOffset: cursor(resp.Offset),
		Total:      resp.NFTCount,
		NFTs:       make([]domain.NFT, 0, len(resp.NFTs)),
	}
	if resp.Collection != nil {
		col := resp.Collection.toDomain(resp.NFTCount)
		page.Collection = &col
	}
	for _, n := range resp.NFTs {
		page.NFTs = append(page.NFTs, domain.NFT{
			ID:              n.ID,
			Name:            n.Name,
			Description:     n.Description,
			Thumbnail:       n.Thumbnail,
			CollectionID:    collectionID,
			ContractAddress: n.ContractAddress,
		})
	}
	return page, nil
}
