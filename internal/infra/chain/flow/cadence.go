package flow

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

// JSON-Cadence value, the interchange format of script arguments and results.
type cadenceValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type cadenceKV struct {
	Key   cadenceValue `json:"key"`
	Value cadenceValue `json:"value"`
}

const availableBalanceScript = `
access(all) fun main(addresses: [Address]): {Address: UFix64} {
    let res: {Address: UFix64} = {}
    for addr in addresses {
        res[addr] = getAccount(addr).availableBalance
    }
    return res
}
`

// encodeAddressArray encodes [Address] as a base64 JSON-Cadence argument.
func encodeAddressArray(addrs []domain.Address) (string, error) {
	items := make([]map[string]string, 0, len(addrs))
	for _, a := range addrs {
		items = append(items, map[string]string{"type": "Address", "value": a.String()})
	}
	data, err := json.Marshal(map[string]any{"type": "Array", "value": items})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// decodeAddressUFix64Dict decodes a base64 {Address: UFix64} script result.
func decodeAddressUFix64Dict(encoded string) (map[string]decimal.Decimal, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode script result: %w", err)
	}

	var v cadenceValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode script result: %w", err)
	}
	if v.Type != "Dictionary" {
		return nil, fmt.Errorf("decode script result: expected Dictionary, got %s", v.Type)
	}

	var entries []cadenceKV
	if err := json.Unmarshal(v.Value, &entries); err != nil {
		return nil, fmt.Errorf("decode script result: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		var key, val string
		if err := json.Unmarshal(e.Key.Value, &key); err != nil {
			return nil, fmt.Errorf("decode dictionary key: %w", err)
		}
		if err := json.Unmarshal(e.Value.Value, &val); err != nil {
			return nil, fmt.Errorf("decode dictionary value: %w", err)
		}
		addr, err := domain.ParseAddress(key)
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(val)
		if err != nil {
			return nil, fmt.Errorf("decode UFix64 %q: %w", val, err)
		}
		out[addr.String()] = amount
	}
	return out, nil
}
