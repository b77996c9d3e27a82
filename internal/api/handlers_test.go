package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safar/go-price-resolver/internal/apperr"
	"github.com/safar/go-price-resolver/internal/database"
	"github.com/safar/go-price-resolver/internal/metrics"
	"github.com/safar/go-price-resolver/internal/models"
	"github.com/safar/go-price-resolver/internal/pricing"
	"github.com/safar/go-price-resolver/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows  []models.CalculatedPrice
	err   error
	calls int
	last  pricing.Context
}

func (f *fakeRepo) CalculatePrices(_ context.Context, _ []string, pc pricing.Context) ([]models.CalculatedPrice, error) {
	f.calls++
	f.last = pc
	return f.rows, f.err
}

type fakeLists struct {
	lists []models.PriceList
}

func (f *fakeLists) ListPriceLists(_ context.Context, status models.PriceListStatus, page, pageSize int) (*store.OffsetPage, error) {
	items := []models.PriceList{}
	for _, pl := range f.lists {
		if status == "" || pl.Status == status {
			items = append(items, pl)
		}
	}
	return &store.OffsetPage{Items: items, Total: int64(len(items)), Page: page, PageSize: pageSize, TotalPages: 1}, nil
}

func (f *fakeLists) GetPriceList(_ context.Context, id string) (*models.PriceList, error) {
	for _, pl := range f.lists {
		if pl.ID == id {
			return &pl, nil
		}
	}
	return nil, database.ErrPriceListNotFound
}

func newTestRouter(t *testing.T, repo *fakeRepo, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc, err := pricing.NewService(pricing.ServiceParams{
		Repo:    repo,
		Engine:  "sql",
		Metrics: metrics.NewResolverMetrics(reg),
	})
	require.NoError(t, err)

	return NewRouter(RouterParams{
		Prices: svc,
		PriceLists: &fakeLists{lists: []models.PriceList{
			{ID: "pl_1", Title: "Wholesale", Status: models.PriceListStatusActive, NumberRules: 1},
			{ID: "pl_2", Title: "Draft sale", Status: models.PriceListStatusDraft},
		}},
		Checks:   checks,
		Gatherer: reg,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error
}

func generic(psmaID, priceSetID string, amount int64, numberRules int) models.CalculatedPrice {
	return models.CalculatedPrice{
		PriceSetID:            priceSetID,
		PriceSetMoneyAmountID: psmaID,
		Amount:                decimal.NewFromInt(amount),
		CurrencyCode:          "USD",
		NumberRules:           numberRules,
	}
}

func TestCalculatePricesEndpoint(t *testing.T) {
	repo := &fakeRepo{rows: []models.CalculatedPrice{
		generic("psma_vip", "ps_1", 900, 1),
		generic("psma_default", "ps_1", 1000, 0),
	}}
	h := newTestRouter(t, repo, nil)

	w := do(t, h, http.MethodPost, "/v1/prices/calculate",
		`{"price_set_ids":["ps_1"],"context":{"currency_code":"USD","customer_group":"vip","quantity":3}}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var env struct {
		Data []models.CalculatedPrice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	assert.Equal(t, "psma_vip", env.Data[0].PriceSetMoneyAmountID)

	require.NotNil(t, repo.last.Quantity)
	assert.Equal(t, int64(3), *repo.last.Quantity)
	assert.Equal(t, map[string]string{"customer_group": "vip"}, repo.last.Attributes)
}

func TestCalculatePricesEndpointBestOnly(t *testing.T) {
	repo := &fakeRepo{rows: []models.CalculatedPrice{
		generic("psma_vip", "ps_1", 900, 1),
		generic("psma_default", "ps_1", 1000, 0),
		generic("psma_other", "ps_2", 50, 0),
	}}
	h := newTestRouter(t, repo, nil)

	w := do(t, h, http.MethodPost, "/v1/prices/calculate",
		`{"price_set_ids":["ps_2","ps_1"],"context":{"currency_code":"USD"},"best_only":true}`)

	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data []models.CalculatedPrice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	assert.Equal(t, "psma_other", env.Data[0].PriceSetMoneyAmountID)
	assert.Equal(t, "psma_vip", env.Data[1].PriceSetMoneyAmountID)
}

func TestCalculatePricesEndpointEmptyResultIsList(t *testing.T) {
	h := newTestRouter(t, &fakeRepo{}, nil)

	w := do(t, h, http.MethodPost, "/v1/prices/calculate", `{"price_set_ids":[],"context":{"currency_code":"USD"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestCalculatePricesEndpointValidation(t *testing.T) {
	repo := &fakeRepo{}
	h := newTestRouter(t, repo, nil)

	cases := map[string]string{
		"missing currency": `{"price_set_ids":["ps_1"],"context":{"region_id":"reg_us"}}`,
		"bad quantity":     `{"price_set_ids":["ps_1"],"context":{"currency_code":"USD","quantity":1.5}}`,
		"nested value":     `{"price_set_ids":["ps_1"],"context":{"currency_code":"USD","customer_group":{"a":1}}}`,
		"blank id":         `{"price_set_ids":[""],"context":{"currency_code":"USD"}}`,
		"unknown field":    `{"price_set_ids":["ps_1"],"context":{"currency_code":"USD"},"extra":true}`,
		"malformed":        `{"price_set_ids":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/v1/prices/calculate", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(apperr.CodeInvalidInput), decodeError(t, w).Code)
		})
	}
	assert.Zero(t, repo.calls)
}

func TestCalculatePricesEndpointStoreErrors(t *testing.T) {
	t.Run("transient", func(t *testing.T) {
		h := newTestRouter(t, &fakeRepo{err: &pq.Error{Code: "40001"}}, nil)
		w := do(t, h, http.MethodPost, "/v1/prices/calculate", `{"price_set_ids":["ps_1"],"context":{"currency_code":"USD"}}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, string(apperr.CodeDependency), decodeError(t, w).Code)
	})

	t.Run("permanent", func(t *testing.T) {
		h := newTestRouter(t, &fakeRepo{err: errors.New("syntax error")}, nil)
		w := do(t, h, http.MethodPost, "/v1/prices/calculate", `{"price_set_ids":["ps_1"],"context":{"currency_code":"USD"}}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		apiErr := decodeError(t, w)
		assert.Equal(t, string(apperr.CodeInternal), apiErr.Code)
		assert.NotContains(t, apiErr.Message, "syntax")
	})
}

func TestPriceListEndpoints(t *testing.T) {
	h := newTestRouter(t, &fakeRepo{}, nil)

	w := do(t, h, http.MethodGet, "/v1/price-lists?status=active", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data struct {
			Items []models.PriceList `json:"items"`
			Total int64              `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Data.Total)
	assert.Equal(t, "pl_1", page.Data.Items[0].ID)

	w = do(t, h, http.MethodGet, "/v1/price-lists?status=archived", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/v1/price-lists/pl_2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Draft sale")

	w = do(t, h, http.MethodGet, "/v1/price-lists/pl_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperr.CodeNotFound), decodeError(t, w).Code)
}

func TestHealthz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	w := do(t, newTestRouter(t, &fakeRepo{}, map[string]HealthCheck{"postgres": ok}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"postgres":"ok"}}`, w.Body.String())

	w = do(t, newTestRouter(t, &fakeRepo{}, map[string]HealthCheck{"postgres": ok, "redis": down}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"data":{"postgres":"ok","redis":"unavailable"}}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeRepo{rows: []models.CalculatedPrice{generic("psma_1", "ps_1", 1, 0)}}, nil)
	do(t, h, http.MethodPost, "/v1/prices/calculate", `{"price_set_ids":["ps_1"],"context":{"currency_code":"USD"}}`)

	w := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pricing_resolve_total{engine="sql",outcome="ok"} 1`)
}

func TestRecovererRendersInternalError(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(apperr.CodeInternal), decodeError(t, w).Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestRouter(t, &fakeRepo{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}
