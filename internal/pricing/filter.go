package pricing

import "github.com/safar/go-price-resolver/internal/models"

// quantityInRange treats nil bounds as unbounded.
func quantityInRange(min, max *int64, quantity int64) bool {
	if min != nil && *min > quantity {
		return false
	}
	if max != nil && *max < quantity {
		return false
	}
	return true
}

// FilterByQuantity keeps the rows whose quantity range contains quantity. A nil
// quantity disables the filter.
func FilterByQuantity(rows []models.CalculatedPrice, quantity *int64) []models.CalculatedPrice {
	if quantity == nil {
		return rows
	}
	out := make([]models.CalculatedPrice, 0, len(rows))
	for _, row := range rows {
		if quantityInRange(row.MinQuantity, row.MaxQuantity, *quantity) {
			out = append(out, row)
		}
	}
	return out
}

// FilterByCurrency keeps the rows priced in currency.
func FilterByCurrency(rows []models.CalculatedPrice, currency string) []models.CalculatedPrice {
	out := make([]models.CalculatedPrice, 0, len(rows))
	for _, row := range rows {
		if row.CurrencyCode == currency {
			out = append(out, row)
		}
	}
	return out
}
