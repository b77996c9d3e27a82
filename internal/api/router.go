package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safar/go-price-resolver/internal/logger"
)

type RouterParams struct {
	Logger         *logger.Logger
	Prices         PriceResolver
	PriceLists     PriceListReader
	Checks         map[string]HealthCheck
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

func NewRouter(p RouterParams) http.Handler {
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	h := &handlers{
		prices: p.Prices,
		lists:  p.PriceLists,
		checks: p.Checks,
		logg:   logg,
	}

	r := chi.NewRouter()
	r.Use(
		Recoverer(logg),
		RequestID(logg),
		Logging(logg),
	)

	r.Get("/healthz", h.health)
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if p.RequestTimeout > 0 {
			r.Use(chimw.Timeout(p.RequestTimeout))
		}
		r.Post("/prices/calculate", h.calculatePrices)
		if p.PriceLists != nil {
			r.Get("/price-lists", h.listPriceLists)
			r.Get("/price-lists/{id}", h.getPriceList)
		}
	})

	return r
}
