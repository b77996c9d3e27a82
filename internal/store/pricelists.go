package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-price-resolver/internal/database"
	"github.com/safar/go-price-resolver/internal/models"
)

// ListPriceLists returns one page of price lists, newest first. An empty
// status lists every status.
func ListPriceLists(ctx context.Context, db *sql.DB, status models.PriceListStatus, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_list WHERE ($1 = '' OR status = $1)`,
		string(status)).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count price lists: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, title, description, status, starts_at, ends_at, number_rules, created_at, updated_at
		FROM price_list
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, string(status), pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list price lists: %w", err)
	}
	defer rows.Close()

	priceLists := []models.PriceList{}
	for rows.Next() {
		var pl models.PriceList
		err := rows.Scan(
			&pl.ID,
			&pl.Title,
			&pl.Description,
			&pl.Status,
			&pl.StartsAt,
			&pl.EndsAt,
			&pl.NumberRules,
			&pl.CreatedAt,
			&pl.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price list: %w", err)
		}
		priceLists = append(priceLists, pl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      priceLists,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// GetPriceList returns a price list with its rules and their accepted values.
func GetPriceList(ctx context.Context, db *sql.DB, id string) (*models.PriceList, error) {
	pl := &models.PriceList{}

	query := `
		SELECT id, title, description, status, starts_at, ends_at, number_rules, created_at, updated_at
		FROM price_list
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&pl.ID,
		&pl.Title,
		&pl.Description,
		&pl.Status,
		&pl.StartsAt,
		&pl.EndsAt,
		&pl.NumberRules,
		&pl.CreatedAt,
		&pl.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPriceListNotFound
		}
		return nil, fmt.Errorf("get price list: %w", err)
	}

	rulesQuery := `
		SELECT plr.id, plr.rule_type_id, rt.rule_attribute, plr.priority,
		       COALESCE(array_agg(plrv.value ORDER BY plrv.value) FILTER (WHERE plrv.value IS NOT NULL), '{}')
		FROM price_list_rule plr
		JOIN rule_type rt ON rt.id = plr.rule_type_id
		LEFT JOIN price_list_rule_value plrv ON plrv.price_list_rule_id = plr.id
		WHERE plr.price_list_id = $1
		GROUP BY plr.id, rt.id
		ORDER BY rt.rule_attribute`

	rows, err := db.QueryContext(ctx, rulesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get price list rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rule := models.PriceListRule{PriceListID: id}
		var values pq.StringArray
		err := rows.Scan(
			&rule.ID,
			&rule.RuleTypeID,
			&rule.RuleAttribute,
			&rule.Priority,
			&values,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price list rule: %w", err)
		}
		rule.Values = []string(values)
		pl.Rules = append(pl.Rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return pl, nil
}

// PriceListRepository exposes the read-only price list queries over a pool.
type PriceListRepository struct {
	db *sql.DB
}

func NewPriceListRepository(db *sql.DB) *PriceListRepository {
	return &PriceListRepository{db: db}
}

func (r *PriceListRepository) ListPriceLists(ctx context.Context, status models.PriceListStatus, page, pageSize int) (*OffsetPage, error) {
	return ListPriceLists(ctx, r.db, status, page, pageSize)
}

func (r *PriceListRepository) GetPriceList(ctx context.Context, id string) (*models.PriceList, error) {
	return GetPriceList(ctx, r.db, id)
}
