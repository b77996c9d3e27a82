package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RuleType struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	RuleAttribute   string    `json:"rule_attribute"`
	DefaultPriority int       `json:"default_priority"`
	CreatedAt       time.Time `json:"created_at"`
}

type PriceSet struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// MoneyAmount is an amount in one currency. Nil quantity bounds are unbounded.
type MoneyAmount struct {
	ID           string          `json:"id"`
	CurrencyCode string          `json:"currency_code"`
	Amount       decimal.Decimal `json:"amount"`
	MinQuantity  *int64          `json:"min_quantity"`
	MaxQuantity  *int64          `json:"max_quantity"`
}

// PriceSetMoneyAmount links a money amount to a price set. A nil PriceListID
// marks a generic price whose own PriceRules decide eligibility; otherwise the
// owning list's rules do.
type PriceSetMoneyAmount struct {
	ID            string  `json:"id"`
	PriceSetID    string  `json:"price_set_id"`
	MoneyAmountID string  `json:"money_amount_id"`
	PriceListID   *string `json:"price_list_id"`
	NumberRules   int     `json:"number_rules"`
}

type PriceRule struct {
	ID                    string `json:"id"`
	PriceSetMoneyAmountID string `json:"price_set_money_amount_id"`
	RuleTypeID            string `json:"rule_type_id"`
	Value                 string `json:"value"`
	Priority              int    `json:"priority"`
}

type PriceList struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      PriceListStatus `json:"status"`
	StartsAt    *time.Time      `json:"starts_at"`
	EndsAt      *time.Time      `json:"ends_at"`
	NumberRules int             `json:"number_rules"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Rules       []PriceListRule `json:"rules,omitempty"`
}

type PriceListRule struct {
	ID            string   `json:"id"`
	PriceListID   string   `json:"price_list_id"`
	RuleTypeID    string   `json:"rule_type_id"`
	RuleAttribute string   `json:"rule_attribute,omitempty"`
	Priority      int      `json:"priority"`
	Values        []string `json:"values"`
}

type PriceListStatus string

const (
	PriceListStatusActive PriceListStatus = "active"
	PriceListStatusDraft  PriceListStatus = "draft"
)

func (s PriceListStatus) Valid() bool {
	return s == PriceListStatusActive || s == PriceListStatusDraft
}

// CalculatedPrice is one eligible candidate row returned by price resolution.
type CalculatedPrice struct {
	PriceSetID            string          `json:"price_set_id"`
	PriceSetMoneyAmountID string          `json:"price_set_money_amount_id"`
	Amount                decimal.Decimal `json:"amount"`
	CurrencyCode          string          `json:"currency_code"`
	MinQuantity           *int64          `json:"min_quantity"`
	MaxQuantity           *int64          `json:"max_quantity"`
	DefaultPriority       *int            `json:"default_priority"`
	NumberRules           int             `json:"number_rules"`
	PriceListNumberRules  *int            `json:"price_list_number_rules"`
	PriceListID           *string         `json:"price_list_id"`
}
