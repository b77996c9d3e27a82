package store

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-price-resolver/internal/database"
	"github.com/safar/go-price-resolver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPriceLists(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	newSeeder(t, db).
		list("pl_1", "active", nil).
		list("pl_2", "draft", nil).
		list("pl_3", "active", map[string][]string{"rt_group": {"vip"}})

	ctx := context.Background()

	page, err := ListPriceLists(ctx, db, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items.([]models.PriceList), 2)

	page, err = ListPriceLists(ctx, db, "", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items.([]models.PriceList), 1)

	active, err := ListPriceLists(ctx, db, models.PriceListStatusActive, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active.Total)
	for _, pl := range active.Items.([]models.PriceList) {
		assert.Equal(t, models.PriceListStatusActive, pl.Status)
	}
}

func TestGetPriceList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	newSeeder(t, db).
		list("pl_b2b", "active", map[string][]string{"rt_group": {"wholesale", "b2b"}, "rt_region": {"reg_us"}})

	ctx := context.Background()

	pl, err := GetPriceList(ctx, db, "pl_b2b")
	require.NoError(t, err)
	assert.Equal(t, "List pl_b2b", pl.Title)
	assert.Equal(t, 2, pl.NumberRules)
	assert.Nil(t, pl.StartsAt)
	require.Len(t, pl.Rules, 2)
	assert.Equal(t, "customer_group", pl.Rules[0].RuleAttribute)
	assert.Equal(t, []string{"b2b", "wholesale"}, pl.Rules[0].Values)
	assert.Equal(t, "region_id", pl.Rules[1].RuleAttribute)

	_, err = GetPriceList(ctx, db, "pl_missing")
	assert.True(t, errors.Is(err, database.ErrPriceListNotFound))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 20))
	assert.Equal(t, 1, totalPages(20, 20))
	assert.Equal(t, 2, totalPages(21, 20))
	assert.Equal(t, 0, totalPages(5, 0))
}
