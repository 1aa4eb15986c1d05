// Package fxrate supplies the USD to so'm exchange rate used when pricing stock intake.
package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/angelmondragon/shopkeeper/pkg/config"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
	"github.com/angelmondragon/shopkeeper/pkg/redis"
	"github.com/shopspring/decimal"
)

const defaultCacheTTL = 24 * time.Hour

// cache is the optional shared cache; *redis.Client satisfies it.
type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type cbuQuote struct {
	Ccy  string `json:"Ccy"`
	Rate string `json:"Rate"`
	Date string `json:"Date"`
}

// Provider fetches the Central Bank USD rate, caches it, and falls back to the
// last good rate or the configured default when the feed is unavailable.
type Provider struct {
	url      string
	fallback decimal.Decimal
	ttl      time.Duration
	client   *http.Client
	cache    cache
	cacheKey string
	logg     *logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	rate      decimal.Decimal
	fetchedAt time.Time
}

// NewProvider builds a provider from config. shared may be nil.
func NewProvider(cfg config.FXConfig, shared *redis.Client, logg *logger.Logger) (*Provider, error) {
	fallback, err := decimal.NewFromString(cfg.FallbackRate)
	if err != nil || !fallback.IsPositive() {
		return nil, fmt.Errorf("invalid fallback rate %q", cfg.FallbackRate)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	p := &Provider{
		url:      cfg.URL,
		fallback: fallback,
		ttl:      ttl,
		client:   &http.Client{Timeout: cfg.Timeout},
		logg:     logg,
		now:      time.Now,
	}
	if shared != nil {
		p.cache = shared
		p.cacheKey = shared.CacheKey("fx", "usd")
	}
	return p, nil
}

// USDRate returns the current rate. It never fails once a fallback is configured.
func (p *Provider) USDRate(ctx context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.rate.IsZero() && p.now().Sub(p.fetchedAt) < p.ttl {
		return p.rate, nil
	}

	if rate, ok := p.fromSharedCache(ctx); ok {
		p.remember(rate)
		return rate, nil
	}

	rate, err := p.fetch(ctx)
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "usd rate fetch failed; using fallback")
		if !p.rate.IsZero() {
			return p.rate, nil
		}
		return p.fallback, nil
	}

	p.remember(rate)
	if p.cache != nil {
		if err := p.cache.Set(ctx, p.cacheKey, rate.String(), p.ttl); err != nil {
			p.logg.Warn(ctx, "usd rate cache write failed")
		}
	}
	return rate, nil
}

func (p *Provider) remember(rate decimal.Decimal) {
	p.rate = rate
	p.fetchedAt = p.now()
}

func (p *Provider) fromSharedCache(ctx context.Context) (decimal.Decimal, bool) {
	if p.cache == nil {
		return decimal.Zero, false
	}
	raw, err := p.cache.Get(ctx, p.cacheKey)
	if err != nil {
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

func (p *Provider) fetch(ctx context.Context) (decimal.Decimal, error) {
	if p.url == "" {
		return decimal.Zero, errors.New("fx url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fx feed returned %d", resp.StatusCode)
	}

	var quotes []cbuQuote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return decimal.Zero, fmt.Errorf("decode fx feed: %w", err)
	}
	if len(quotes) == 0 {
		return decimal.Zero, errors.New("fx feed is empty")
	}
	rate, err := decimal.NewFromString(quotes[0].Rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse rate %q: %w", quotes[0].Rate, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %s", rate)
	}
	return rate, nil
}
