package manager

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

var dustThreshold = decimal.NewFromInt(1)

// TokenFilter decides which activated tokens are shown. Hidden is
// recomputed from the flags by Update and can be adjusted per token with
// Toggle.
type TokenFilter struct {
	HideDust     bool     `json:"hideDust"`
	OnlyVerified bool     `json:"onlyVerified"`
	Hidden       []string `json:"hidden"`
}

// Update rebuilds Hidden from the flags against tokens.
func (f *TokenFilter) Update(tokens []domain.Token) {
	hidden := make([]string, 0)
	for _, t := range tokens {
		dust := f.HideDust && t.BalanceInCurrency.LessThan(dustThreshold)
		unverified := f.OnlyVerified && !t.Verified
		if dust || unverified {
			hidden = append(hidden, t.ID)
		}
	}
	slices.Sort(hidden)
	f.Hidden = slices.Compact(hidden)
}

// Toggle flips the visibility of one token.
func (f *TokenFilter) Toggle(id string) {
	if i := slices.Index(f.Hidden, id); i >= 0 {
		f.Hidden = slices.Delete(f.Hidden, i, i+1)
		return
	}
	f.Hidden = append(f.Hidden, id)
	slices.Sort(f.Hidden)
}

func (f TokenFilter) IsOpen(t domain.Token) bool {
	return !slices.Contains(f.Hidden, t.ID)
}

// Apply returns the visible tokens.
func (f TokenFilter) Apply(tokens []domain.Token) []domain.Token {
	out := make([]domain.Token, 0, len(tokens))
	for _, t := range tokens {
		if f.IsOpen(t) {
			out = append(out, t)
		}
	}
	return out
}
