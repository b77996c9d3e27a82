package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/safar/go-price-resolver/internal/apperr"
	"github.com/safar/go-price-resolver/internal/logger"
	"github.com/safar/go-price-resolver/internal/metrics"
	"github.com/safar/go-price-resolver/internal/models"
)

// Repository runs the candidate query for a normalized context and returns the
// eligible rows already ranked. Implementations issue one logical query per
// call and return store errors unchanged apart from %w wrapping.
type Repository interface {
	CalculatePrices(ctx context.Context, priceSetIDs []string, pc Context) ([]models.CalculatedPrice, error)
}

// Cache stores ranked resolution results by request key.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.CalculatedPrice, bool, error)
	Set(ctx context.Context, key string, rows []models.CalculatedPrice) error
}

// Filters selects the price sets to resolve.
type Filters struct {
	IDs []string
}

type ServiceParams struct {
	Repo    Repository
	Engine  string
	Cache   Cache
	Metrics *metrics.ResolverMetrics
	Logger  *logger.Logger
}

// Service resolves prices. It holds no per-call state and is safe for
// concurrent use.
type Service struct {
	repo    Repository
	engine  string
	cache   Cache
	metrics *metrics.ResolverMetrics
	logg    *logger.Logger
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:    p.Repo,
		engine:  p.Engine,
		cache:   p.Cache,
		metrics: p.Metrics,
		logg:    logg,
	}, nil
}

// CalculatePrices returns every eligible price of the requested price sets,
// ranked. An empty result means no price matched.
func (s *Service) CalculatePrices(ctx context.Context, filters Filters, raw map[string]any) ([]models.CalculatedPrice, error) {
	start := time.Now()

	pc, err := NormalizeContext(raw)
	if err != nil {
		s.metrics.IncOutcome(s.engine, metrics.OutcomeInvalid)
		return nil, err
	}

	ids := uniqueIDs(filters.IDs)
	if len(ids) == 0 || !pc.HasSignal() {
		s.metrics.IncOutcome(s.engine, metrics.OutcomeEmpty)
		return []models.CalculatedPrice{}, nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"engine":        s.engine,
		"currency_code": pc.CurrencyCode,
		"price_sets":    len(ids),
	})

	key := CacheKey(ids, pc)
	if rows, ok := s.cached(ctx, key); ok {
		s.metrics.ObserveDuration(s.engine, time.Since(start))
		s.metrics.IncOutcome(s.engine, outcomeFor(rows))
		return rows, nil
	}

	rows, err := s.repo.CalculatePrices(ctx, ids, pc)
	if err != nil {
		s.metrics.IncOutcome(s.engine, metrics.OutcomeError)
		s.logg.Error(ctx, "pricing.resolve.failed", err)
		return nil, err
	}
	if rows == nil {
		rows = []models.CalculatedPrice{}
	}

	s.store(ctx, key, rows)

	elapsed := time.Since(start)
	s.metrics.ObserveDuration(s.engine, elapsed)
	s.metrics.IncOutcome(s.engine, outcomeFor(rows))
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"candidates":  len(rows),
		"duration_ms": elapsed.Milliseconds(),
	}), "pricing.resolve")

	return rows, nil
}

// BestPrices resolves and keeps the top ranked price of each price set, in the
// order the ids were requested.
func (s *Service) BestPrices(ctx context.Context, filters Filters, raw map[string]any) ([]models.CalculatedPrice, error) {
	rows, err := s.CalculatePrices(ctx, filters, raw)
	if err != nil {
		return nil, err
	}
	return BestPrices(rows, filters.IDs), nil
}

func (s *Service) cached(ctx context.Context, key string) ([]models.CalculatedPrice, bool) {
	if s.cache == nil {
		return nil, false
	}
	rows, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "pricing.cache.get_failed")
		return nil, false
	}
	if !ok {
		s.metrics.IncCache(metrics.CacheMiss)
		return nil, false
	}
	s.metrics.IncCache(metrics.CacheHit)
	return rows, true
}

func (s *Service) store(ctx context.Context, key string, rows []models.CalculatedPrice) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, rows); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "pricing.cache.set_failed")
	}
}

func outcomeFor(rows []models.CalculatedPrice) string {
	if len(rows) == 0 {
		return metrics.OutcomeEmpty
	}
	return metrics.OutcomeOK
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CacheKey derives a stable key from the requested ids and normalized context.
// Id order and attribute order do not affect the key.
func CacheKey(priceSetIDs []string, pc Context) string {
	ids := slices.Clone(priceSetIDs)
	slices.Sort(ids)

	keys := make([]string, 0, len(pc.Attributes))
	for k := range pc.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString("ids=")
	for _, id := range ids {
		b.WriteString(strconv.Quote(id))
		b.WriteByte(',')
	}
	b.WriteString(";currency=")
	b.WriteString(strconv.Quote(pc.CurrencyCode))
	b.WriteString(";quantity=")
	if pc.Quantity != nil {
		b.WriteString(strconv.FormatInt(*pc.Quantity, 10))
	}
	b.WriteString(";attrs=")
	for _, k := range keys {
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(pc.Attributes[k]))
		b.WriteByte(',')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// IsInvalidInput reports whether err is a pricing context validation failure.
func IsInvalidInput(err error) bool {
	return apperr.IsCode(err, apperr.CodeInvalidInput)
}
