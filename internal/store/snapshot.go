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

// LoadSnapshot bulk-fetches everything needed to resolve priceSetIDs in
// currency: the price set money amounts with their money amounts, their price
// rules, and the owning price lists with rules and values. Run it inside a
// repeatable-read transaction so all three reads see the same state.
func LoadSnapshot(ctx context.Context, q querier, priceSetIDs []string, currency string) (*pricing.Snapshot, error) {
	snap := pricing.NewSnapshot()

	if err := loadLinks(ctx, q, snap, priceSetIDs, currency); err != nil {
		return nil, err
	}
	if len(snap.Links) == 0 {
		return snap, nil
	}

	linkIDs := make([]string, 0, len(snap.Links))
	listIDs := make([]string, 0)
	seenList := make(map[string]struct{})
	for _, link := range snap.Links {
		linkIDs = append(linkIDs, link.ID)
		if link.PriceListID != nil {
			if _, ok := seenList[*link.PriceListID]; !ok {
				seenList[*link.PriceListID] = struct{}{}
				listIDs = append(listIDs, *link.PriceListID)
			}
		}
	}

	if err := loadPriceRules(ctx, q, snap, linkIDs); err != nil {
		return nil, err
	}
	if len(listIDs) > 0 {
		if err := loadPriceLists(ctx, q, snap, listIDs); err != nil {
			return nil, err
		}
	}

	return snap, nil
}

func loadLinks(ctx context.Context, q querier, snap *pricing.Snapshot, priceSetIDs []string, currency string) error {
	query := `
		SELECT psma.id, psma.price_set_id, psma.money_amount_id, psma.price_list_id, psma.number_rules,
		       ma.currency_code, ma.amount, ma.min_quantity, ma.max_quantity
		FROM price_set_money_amount psma
		JOIN money_amount ma ON ma.id = psma.money_amount_id
		WHERE psma.price_set_id = ANY($1::text[])
		  AND ma.currency_code = $2
		ORDER BY psma.id`

	rows, err := q.QueryContext(ctx, query, pq.Array(priceSetIDs), currency)
	if err != nil {
		return fmt.Errorf("load price set money amounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			link        models.PriceSetMoneyAmount
			ma          models.MoneyAmount
			priceListID sql.NullString
			minQuantity sql.NullInt64
			maxQuantity sql.NullInt64
		)
		err := rows.Scan(
			&link.ID,
			&link.PriceSetID,
			&link.MoneyAmountID,
			&priceListID,
			&link.NumberRules,
			&ma.CurrencyCode,
			&ma.Amount,
			&minQuantity,
			&maxQuantity,
		)
		if err != nil {
			return fmt.Errorf("scan price set money amount: %w", err)
		}
		link.PriceListID = nullStringPtr(priceListID)
		ma.ID = link.MoneyAmountID
		ma.MinQuantity = nullInt64Ptr(minQuantity)
		ma.MaxQuantity = nullInt64Ptr(maxQuantity)

		snap.Links = append(snap.Links, link)
		snap.MoneyAmounts[ma.ID] = ma
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func loadPriceRules(ctx context.Context, q querier, snap *pricing.Snapshot, linkIDs []string) error {
	query := `
		SELECT pr.id, pr.price_set_money_amount_id, pr.rule_type_id, pr.value, pr.priority,
		       rt.name, rt.rule_attribute, rt.default_priority
		FROM price_rule pr
		JOIN rule_type rt ON rt.id = pr.rule_type_id
		WHERE pr.price_set_money_amount_id = ANY($1::text[])
		ORDER BY pr.price_set_money_amount_id, pr.id`

	rows, err := q.QueryContext(ctx, query, pq.Array(linkIDs))
	if err != nil {
		return fmt.Errorf("load price rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rule models.PriceRule
			rt   models.RuleType
		)
		err := rows.Scan(
			&rule.ID,
			&rule.PriceSetMoneyAmountID,
			&rule.RuleTypeID,
			&rule.Value,
			&rule.Priority,
			&rt.Name,
			&rt.RuleAttribute,
			&rt.DefaultPriority,
		)
		if err != nil {
			return fmt.Errorf("scan price rule: %w", err)
		}
		rt.ID = rule.RuleTypeID
		snap.RuleTypes[rt.ID] = rt
		snap.PriceRules[rule.PriceSetMoneyAmountID] = append(snap.PriceRules[rule.PriceSetMoneyAmountID], rule)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func loadPriceLists(ctx context.Context, q querier, snap *pricing.Snapshot, listIDs []string) error {
	query := `
		SELECT pl.id, pl.title, pl.status, pl.starts_at, pl.ends_at, pl.number_rules,
		       plr.id, plr.rule_type_id, plr.priority, rt.name, rt.rule_attribute, rt.default_priority,
		       COALESCE(array_agg(plrv.value ORDER BY plrv.value) FILTER (WHERE plrv.value IS NOT NULL), '{}')
		FROM price_list pl
		LEFT JOIN price_list_rule plr ON plr.price_list_id = pl.id
		LEFT JOIN rule_type rt ON rt.id = plr.rule_type_id
		LEFT JOIN price_list_rule_value plrv ON plrv.price_list_rule_id = plr.id
		WHERE pl.id = ANY($1::text[])
		GROUP BY pl.id, plr.id, rt.id
		ORDER BY pl.id, plr.id`

	rows, err := q.QueryContext(ctx, query, pq.Array(listIDs))
	if err != nil {
		return fmt.Errorf("load price lists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pl              models.PriceList
			ruleID          sql.NullString
			ruleTypeID      sql.NullString
			rulePriority    sql.NullInt64
			ruleTypeName    sql.NullString
			ruleAttribute   sql.NullString
			defaultPriority sql.NullInt64
			values          pq.StringArray
		)
		err := rows.Scan(
			&pl.ID,
			&pl.Title,
			&pl.Status,
			&pl.StartsAt,
			&pl.EndsAt,
			&pl.NumberRules,
			&ruleID,
			&ruleTypeID,
			&rulePriority,
			&ruleTypeName,
			&ruleAttribute,
			&defaultPriority,
			&values,
		)
		if err != nil {
			return fmt.Errorf("scan price list rule: %w", err)
		}

		existing, ok := snap.PriceLists[pl.ID]
		if ok {
			pl = existing
		}
		if ruleID.Valid {
			pl.Rules = append(pl.Rules, models.PriceListRule{
				ID:            ruleID.String,
				PriceListID:   pl.ID,
				RuleTypeID:    ruleTypeID.String,
				RuleAttribute: ruleAttribute.String,
				Priority:      int(rulePriority.Int64),
				Values:        []string(values),
			})
			snap.RuleTypes[ruleTypeID.String] = models.RuleType{
				ID:              ruleTypeID.String,
				Name:            ruleTypeName.String,
				RuleAttribute:   ruleAttribute.String,
				DefaultPriority: int(defaultPriority.Int64),
			}
		}
		snap.PriceLists[pl.ID] = pl
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

// SnapshotRepository resolves prices in memory over a bulk-loaded snapshot.
type SnapshotRepository struct {
	db         *sql.DB
	maxRetries int
}

func NewSnapshotRepository(db *sql.DB, maxRetries int) *SnapshotRepository {
	return &SnapshotRepository{db: db, maxRetries: maxRetries}
}

func (r *SnapshotRepository) CalculatePrices(ctx context.Context, priceSetIDs []string, pc pricing.Context) ([]models.CalculatedPrice, error) {
	var snap *pricing.Snapshot
	err := database.WithRetry(ctx, r.db, database.SnapshotTxOptions(r.maxRetries), func(tx *sql.Tx) error {
		var err error
		snap, err = LoadSnapshot(ctx, tx, priceSetIDs, pc.CurrencyCode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pricing.Resolve(snap, priceSetIDs, pc), nil
}
