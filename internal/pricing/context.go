// Package pricing resolves the best-matching money amounts of price sets for a
// runtime evaluation context.
package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/safar/go-price-resolver/internal/apperr"
	"github.com/shopspring/decimal"
)

// Reserved context keys. They steer resolution and are never matched as rule
// attributes.
const (
	KeyCurrencyCode = "currency_code"
	KeyQuantity     = "quantity"
)

// Context is a normalized pricing context: the reserved control values pulled
// out of the caller's map, plus the remaining matchable attributes.
type Context struct {
	CurrencyCode string
	Quantity     *int64
	Attributes   map[string]string
}

// HasSignal reports whether the context carries anything worth querying for.
func (c Context) HasSignal() bool {
	return len(c.Attributes) > 0 || c.CurrencyCode != ""
}

// NormalizeContext builds a Context from a free-form attribute map. The input
// map is not modified. A missing or blank currency_code is an InvalidInput
// error, as is a non-scalar attribute value or a quantity that is not a
// non-negative integer. Nil attribute values are dropped.
func NormalizeContext(raw map[string]any) (Context, error) {
	currency, err := currencyFrom(raw[KeyCurrencyCode])
	if err != nil {
		return Context{}, err
	}

	pc := Context{
		CurrencyCode: currency,
		Attributes:   make(map[string]string, len(raw)),
	}

	if q, ok := raw[KeyQuantity]; ok && q != nil {
		quantity, err := quantityFrom(q)
		if err != nil {
			return Context{}, err
		}
		pc.Quantity = &quantity
	}

	for key, value := range raw {
		if key == KeyCurrencyCode || key == KeyQuantity || value == nil {
			continue
		}
		s, ok := scalarString(value)
		if !ok {
			return Context{}, apperr.Newf(apperr.CodeInvalidInput, "context attribute %q must be a scalar value", key).
				WithDetails(map[string]any{"attribute": key})
		}
		pc.Attributes[key] = s
	}

	return pc, nil
}

func currencyFrom(value any) (string, error) {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", apperr.New(apperr.CodeInvalidInput, "price calculation requires currency_code in the pricing context").
			WithDetails(map[string]any{"attribute": KeyCurrencyCode})
	}
	return strings.TrimSpace(s), nil
}

func quantityFrom(value any) (int64, error) {
	invalid := apperr.New(apperr.CodeInvalidInput, "quantity must be a non-negative integer").
		WithDetails(map[string]any{"attribute": KeyQuantity})

	var q int64
	switch v := value.(type) {
	case int:
		q = int64(v)
	case int32:
		q = int64(v)
	case int64:
		q = v
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, invalid
		}
		q = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, invalid
		}
		q = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, invalid
		}
		q = n
	default:
		return 0, invalid
	}

	if q < 0 {
		return 0, invalid
	}
	return q, nil
}

// scalarString renders a scalar the way rule values are stored: as text.
func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	case decimal.Decimal:
		return v.String(), true
	default:
		return "", false
	}
}
