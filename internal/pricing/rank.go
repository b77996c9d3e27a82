package pricing

import (
	"cmp"
	"slices"

	"github.com/safar/go-price-resolver/internal/models"
)

// Rank orders rows in place by:
//
//  1. price list id ascending, generic prices (no list) first
//  2. number of rules descending
//  3. default priority descending, missing priority last
//  4. price set money amount id ascending
//
// Callers wanting list prices to win must special-case that themselves.
func Rank(rows []models.CalculatedPrice) {
	slices.SortStableFunc(rows, compareCandidates)
}

func compareCandidates(a, b models.CalculatedPrice) int {
	if c := compareNullsFirst(a.PriceListID, b.PriceListID); c != 0 {
		return c
	}
	if c := cmp.Compare(b.NumberRules, a.NumberRules); c != 0 {
		return c
	}
	if c := comparePriorityDesc(a.DefaultPriority, b.DefaultPriority); c != 0 {
		return c
	}
	return cmp.Compare(a.PriceSetMoneyAmountID, b.PriceSetMoneyAmountID)
}

func compareNullsFirst(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}

func comparePriorityDesc(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*b, *a)
	}
}

// BestPrices picks the first row per price set from ranked rows, returned in
// the order of priceSetIDs. Price sets without an eligible row are omitted.
func BestPrices(ranked []models.CalculatedPrice, priceSetIDs []string) []models.CalculatedPrice {
	first := make(map[string]models.CalculatedPrice, len(priceSetIDs))
	for _, row := range ranked {
		if _, seen := first[row.PriceSetID]; !seen {
			first[row.PriceSetID] = row
		}
	}

	out := make([]models.CalculatedPrice, 0, len(first))
	emitted := make(map[string]struct{}, len(first))
	for _, id := range priceSetIDs {
		row, ok := first[id]
		if !ok {
			continue
		}
		if _, done := emitted[id]; done {
			continue
		}
		emitted[id] = struct{}{}
		out = append(out, row)
	}
	return out
}
