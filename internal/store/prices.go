package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-price-resolver/internal/database"
	"github.com/safar/go-price-resolver/internal/models"
	"github.com/safar/go-price-resolver/internal/pricing"
)

// calculatePricesQuery resolves eligible prices in one statement.
//
// $1 price set ids, $2 currency code, $3/$4 context attribute keys and values
// (parallel arrays), $5 quantity or NULL.
const calculatePricesQuery = `
	WITH ctx AS (
		SELECT c.rule_attribute, c.value
		FROM unnest($3::text[], $4::text[]) AS c(rule_attribute, value)
	),
	candidates AS (
		SELECT psma.id,
		       psma.price_set_id,
		       psma.money_amount_id,
		       psma.price_list_id,
		       psma.number_rules,
		       pl.number_rules AS pl_number_rules
		FROM price_set_money_amount psma
		JOIN money_amount ma ON ma.id = psma.money_amount_id
		LEFT JOIN price_list pl ON pl.id = psma.price_list_id
		WHERE psma.price_set_id = ANY($1::text[])
		  AND ma.currency_code = $2
	),
	generic_matches AS (
		SELECT pr.price_set_money_amount_id AS psma_id,
		       COUNT(DISTINCT pr.rule_type_id) AS matched
		FROM price_rule pr
		JOIN rule_type rt ON rt.id = pr.rule_type_id
		JOIN ctx ON ctx.rule_attribute = rt.rule_attribute AND ctx.value = pr.value
		WHERE pr.price_set_money_amount_id IN (
			SELECT id FROM candidates WHERE price_list_id IS NULL
		)
		GROUP BY pr.price_set_money_amount_id
	),
	list_matches AS (
		SELECT plr.price_list_id,
		       COUNT(DISTINCT plr.rule_type_id) AS matched
		FROM price_list_rule plr
		JOIN rule_type rt ON rt.id = plr.rule_type_id
		JOIN ctx ON ctx.rule_attribute = rt.rule_attribute
		JOIN price_list_rule_value plrv
		  ON plrv.price_list_rule_id = plr.id AND plrv.value = ctx.value
		WHERE plr.price_list_id IN (
			SELECT price_list_id FROM candidates WHERE price_list_id IS NOT NULL
		)
		GROUP BY plr.price_list_id
	),
	priorities AS (
		SELECT pr.price_set_money_amount_id AS psma_id,
		       MAX(rt.default_priority) AS default_priority
		FROM price_rule pr
		JOIN rule_type rt ON rt.id = pr.rule_type_id
		WHERE pr.price_set_money_amount_id IN (SELECT id FROM candidates)
		GROUP BY pr.price_set_money_amount_id
	)
	SELECT c.price_set_id,
	       c.id,
	       ma.amount,
	       ma.currency_code,
	       ma.min_quantity,
	       ma.max_quantity,
	       p.default_priority,
	       c.number_rules,
	       c.pl_number_rules,
	       c.price_list_id
	FROM candidates c
	JOIN money_amount ma ON ma.id = c.money_amount_id
	LEFT JOIN generic_matches gm ON gm.psma_id = c.id
	LEFT JOIN list_matches lm ON lm.price_list_id = c.price_list_id
	LEFT JOIN priorities p ON p.psma_id = c.id
	WHERE (
	        (c.price_list_id IS NULL AND COALESCE(gm.matched, 0) = c.number_rules)
	     OR (c.price_list_id IS NOT NULL AND c.pl_number_rules IS NOT NULL
	         AND COALESCE(lm.matched, 0) = c.pl_number_rules)
	      )
	  AND (
	        $5::bigint IS NULL
	     OR (
	          (ma.min_quantity IS NULL OR ma.min_quantity <= $5::bigint)
	      AND (ma.max_quantity IS NULL OR ma.max_quantity >= $5::bigint)
	        )
	      )
	ORDER BY c.price_list_id ASC NULLS FIRST,
	         c.number_rules DESC,
	         p.default_priority DESC NULLS LAST,
	         c.id ASC`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CalculatePrices runs the composed resolution query. Rows come back ranked.
func CalculatePrices(ctx context.Context, q querier, priceSetIDs []string, pc pricing.Context) ([]models.CalculatedPrice, error) {
	keys := make([]string, 0, len(pc.Attributes))
	values := make([]string, 0, len(pc.Attributes))
	for k, v := range pc.Attributes {
		keys = append(keys, k)
		values = append(values, v)
	}

	var quantity sql.NullInt64
	if pc.Quantity != nil {
		quantity = sql.NullInt64{Int64: *pc.Quantity, Valid: true}
	}

	rows, err := q.QueryContext(ctx, calculatePricesQuery,
		pq.Array(priceSetIDs), pc.CurrencyCode, pq.Array(keys), pq.Array(values), quantity)
	if err != nil {
		return nil, fmt.Errorf("calculate prices: %w", err)
	}
	defer rows.Close()

	prices := []models.CalculatedPrice{}
	for rows.Next() {
		var (
			price           models.CalculatedPrice
			minQuantity     sql.NullInt64
			maxQuantity     sql.NullInt64
			defaultPriority sql.NullInt64
			plNumberRules   sql.NullInt64
			priceListID     sql.NullString
		)
		err := rows.Scan(
			&price.PriceSetID,
			&price.PriceSetMoneyAmountID,
			&price.Amount,
			&price.CurrencyCode,
			&minQuantity,
			&maxQuantity,
			&defaultPriority,
			&price.NumberRules,
			&plNumberRules,
			&priceListID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan calculated price: %w", err)
		}
		price.MinQuantity = nullInt64Ptr(minQuantity)
		price.MaxQuantity = nullInt64Ptr(maxQuantity)
		price.DefaultPriority = nullIntPtr(defaultPriority)
		price.PriceListNumberRules = nullIntPtr(plNumberRules)
		price.PriceListID = nullStringPtr(priceListID)
		prices = append(prices, price)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return prices, nil
}

// PriceRepository resolves prices with the composed SQL query.
type PriceRepository struct {
	db         *sql.DB
	maxRetries int
}

func NewPriceRepository(db *sql.DB, maxRetries int) *PriceRepository {
	return &PriceRepository{db: db, maxRetries: maxRetries}
}

func (r *PriceRepository) CalculatePrices(ctx context.Context, priceSetIDs []string, pc pricing.Context) ([]models.CalculatedPrice, error) {
	var prices []models.CalculatedPrice
	err := database.WithRetry(ctx, r.db, database.SnapshotTxOptions(r.maxRetries), func(tx *sql.Tx) error {
		var err error
		prices, err = CalculatePrices(ctx, tx, priceSetIDs, pc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return prices, nil
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
