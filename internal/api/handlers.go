package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-price-resolver/internal/apperr"
	"github.com/safar/go-price-resolver/internal/logger"
	"github.com/safar/go-price-resolver/internal/models"
	"github.com/safar/go-price-resolver/internal/pricing"
	"github.com/safar/go-price-resolver/internal/store"
)

// PriceResolver is the resolution surface served over HTTP.
type PriceResolver interface {
	CalculatePrices(ctx context.Context, filters pricing.Filters, raw map[string]any) ([]models.CalculatedPrice, error)
	BestPrices(ctx context.Context, filters pricing.Filters, raw map[string]any) ([]models.CalculatedPrice, error)
}

// PriceListReader is the read-only view of authored price lists.
type PriceListReader interface {
	ListPriceLists(ctx context.Context, status models.PriceListStatus, page, pageSize int) (*store.OffsetPage, error)
	GetPriceList(ctx context.Context, id string) (*models.PriceList, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type calculateRequest struct {
	PriceSetIDs []string       `json:"price_set_ids" validate:"max=500,dive,required"`
	Context     map[string]any `json:"context"`
	BestOnly    bool           `json:"best_only"`
}

type handlers struct {
	prices PriceResolver
	lists  PriceListReader
	checks map[string]HealthCheck
	logg   *logger.Logger
}

func (h *handlers) calculatePrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req calculateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteError(ctx, h.logg, w, err)
		return
	}

	filters := pricing.Filters{IDs: req.PriceSetIDs}

	var (
		rows []models.CalculatedPrice
		err  error
	)
	if req.BestOnly {
		rows, err = h.prices.BestPrices(ctx, filters, req.Context)
	} else {
		rows, err = h.prices.CalculatePrices(ctx, filters, req.Context)
	}
	if err != nil {
		WriteError(ctx, h.logg, w, err)
		return
	}

	WriteSuccess(w, rows)
}

func (h *handlers) listPriceLists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	status := models.PriceListStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		WriteError(ctx, h.logg, w, apperr.Newf(apperr.CodeInvalidInput, "unknown price list status %q", status))
		return
	}

	result, err := h.lists.ListPriceLists(ctx, status, page, pageSize)
	if err != nil {
		WriteError(ctx, h.logg, w, err)
		return
	}

	WriteSuccess(w, result)
}

func (h *handlers) getPriceList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pl, err := h.lists.GetPriceList(ctx, chi.URLParam(r, "id"))
	if err != nil {
		WriteError(ctx, h.logg, w, err)
		return
	}

	WriteSuccess(w, pl)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			result[name] = "unavailable"
			h.logg.Warn(h.logg.WithFields(ctx, map[string]any{"dependency": name, "error": err.Error()}), "health.check_failed")
			continue
		}
		result[name] = "ok"
	}

	writeJSON(w, status, SuccessEnvelope{Data: result})
}
