package pricing

import "github.com/safar/go-price-resolver/internal/models"

// Snapshot is a point-in-time, bulk-fetched view of the pricing relations
// needed to resolve a set of price sets. It is read-only once built.
type Snapshot struct {
	RuleTypes    map[string]models.RuleType
	MoneyAmounts map[string]models.MoneyAmount
	Links        []models.PriceSetMoneyAmount
	// PriceRules is keyed by price set money amount id.
	PriceRules map[string][]models.PriceRule
	// PriceLists carry their Rules with Values populated.
	PriceLists map[string]models.PriceList
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		RuleTypes:    make(map[string]models.RuleType),
		MoneyAmounts: make(map[string]models.MoneyAmount),
		PriceRules:   make(map[string][]models.PriceRule),
		PriceLists:   make(map[string]models.PriceList),
	}
}

// Resolve returns every eligible, ranked candidate for priceSetIDs under pc.
func Resolve(s *Snapshot, priceSetIDs []string, pc Context) []models.CalculatedPrice {
	if s == nil || len(priceSetIDs) == 0 || !pc.HasSignal() {
		return []models.CalculatedPrice{}
	}

	requested := make(map[string]struct{}, len(priceSetIDs))
	for _, id := range priceSetIDs {
		requested[id] = struct{}{}
	}

	rows := make([]models.CalculatedPrice, 0, len(s.Links))
	for _, link := range s.Links {
		if _, ok := requested[link.PriceSetID]; !ok {
			continue
		}
		ma, ok := s.MoneyAmounts[link.MoneyAmountID]
		if !ok {
			continue
		}

		row, eligible := s.candidate(link, ma, pc.Attributes)
		if !eligible {
			continue
		}
		rows = append(rows, row)
	}

	rows = FilterByCurrency(rows, pc.CurrencyCode)
	rows = FilterByQuantity(rows, pc.Quantity)
	Rank(rows)
	return rows
}

func (s *Snapshot) candidate(link models.PriceSetMoneyAmount, ma models.MoneyAmount, attrs map[string]string) (models.CalculatedPrice, bool) {
	row := models.CalculatedPrice{
		PriceSetID:            link.PriceSetID,
		PriceSetMoneyAmountID: link.ID,
		Amount:                ma.Amount,
		CurrencyCode:          ma.CurrencyCode,
		MinQuantity:           ma.MinQuantity,
		MaxQuantity:           ma.MaxQuantity,
		DefaultPriority:       s.defaultPriority(link.ID),
		NumberRules:           link.NumberRules,
		PriceListID:           link.PriceListID,
	}

	if link.PriceListID == nil {
		matched := countMatchedPriceRules(s.PriceRules[link.ID], s.RuleTypes, attrs)
		return row, matched == link.NumberRules
	}

	list, ok := s.PriceLists[*link.PriceListID]
	if !ok {
		return row, false
	}
	plRules := list.NumberRules
	row.PriceListNumberRules = &plRules

	matched := countMatchedPriceListRules(list.Rules, s.RuleTypes, attrs)
	return row, matched == list.NumberRules
}

// defaultPriority is the highest default priority among the rule types of the
// link's own price rules, or nil when it has none.
func (s *Snapshot) defaultPriority(linkID string) *int {
	var best *int
	for _, rule := range s.PriceRules[linkID] {
		rt, ok := s.RuleTypes[rule.RuleTypeID]
		if !ok {
			continue
		}
		if best == nil || rt.DefaultPriority > *best {
			p := rt.DefaultPriority
			best = &p
		}
	}
	return best
}
