package csetrack

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const cseCompanyInfoURL = "https://www.cse.lk/api/companyInfoSummery"

// Price fetcher errors. Use errors.Is() to check for these conditions.
var (
	// ErrNoData indicates the data source returned no price for the symbol.
	ErrNoData = errors.New("no price data available")
	// ErrCoolingDown indicates the source is skipped after recent failures.
	ErrCoolingDown = errors.New("price source cooling down")
)

// HTTPDoer is an interface for making HTTP requests. It enables dependency
// injection for testing without network calls.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type priceFetcherOptions struct {
	Logger      *slog.Logger
	CacheTTL    time.Duration
	Cooldown    time.Duration
	HTTPTimeout time.Duration
	HTTPClient  HTTPDoer // Optional: inject custom client for testing
}

type priceFetcher struct {
	logger   *slog.Logger
	cacheTTL time.Duration
	cooldown time.Duration
	client   HTTPDoer

	mu       sync.Mutex
	cache    map[string]priceCacheEntry
	lastFail map[string]time.Time
}

type priceCacheEntry struct {
	price float64
	ts    time.Time
}

func newPriceFetcher(opts priceFetcherOptions) *priceFetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.HTTPTimeout}
	}
	return &priceFetcher{
		logger:   logger,
		cacheTTL: opts.CacheTTL,
		cooldown: opts.Cooldown,
		client:   client,
		cache:    map[string]priceCacheEntry{},
		lastFail: map[string]time.Time{},
	}
}

// cseQuoteResponse mirrors the relevant part of the CSE company info payload.
type cseQuoteResponse struct {
	ReqSymbolInfo struct {
		Symbol          string  `json:"symbol"`
		LastTradedPrice float64 `json:"lastTradedPrice"`
		PreviousClose   float64 `json:"previousClose"`
	} `json:"reqSymbolInfo"`
}

// FetchPrice returns the last traded price for a CSE symbol, serving from
// the TTL cache when fresh and backing off after failures.
func (f *priceFetcher) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = normalizeSymbol(symbol)

	f.mu.Lock()
	if entry, ok := f.cache[symbol]; ok && time.Since(entry.ts) < f.cacheTTL {
		f.mu.Unlock()
		return entry.price, nil
	}
	if failedAt, ok := f.lastFail[symbol]; ok && time.Since(failedAt) < f.cooldown {
		f.mu.Unlock()
		return 0, ErrCoolingDown
	}
	f.mu.Unlock()

	price, err := f.fetchFromCSE(ctx, symbol)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.lastFail[symbol] = time.Now()
		return 0, err
	}
	delete(f.lastFail, symbol)
	f.cache[symbol] = priceCacheEntry{price: price, ts: time.Now()}
	return price, nil
}

func (f *priceFetcher) fetchFromCSE(ctx context.Context, symbol string) (float64, error) {
	form := url.Values{}
	form.Set("symbol", symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cseCompanyInfoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("cse request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("cse responded with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}
	var quote cseQuoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return 0, fmt.Errorf("cse response parse failed: %w", err)
	}
	price := quote.ReqSymbolInfo.LastTradedPrice
	if price <= 0 {
		price = quote.ReqSymbolInfo.PreviousClose
	}
	if price <= 0 {
		return 0, ErrNoData
	}
	return price, nil
}

// SetHTTPClient swaps the fetcher's HTTP client. Intended for tests.
func (c *Core) SetHTTPClient(client HTTPDoer) {
	if client != nil {
		c.price.client = client
	}
}

// SetManualPrice stores a manually entered price for a symbol.
func (c *Core) SetManualPrice(symbol string, price float64) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return NewError(ErrCodeInvalidInput, "symbol required")
	}
	if price <= 0 {
		return NewError(ErrCodeValidation, "price must be positive")
	}
	old, _ := c.GetLatestPrice(symbol)
	_, err := c.db.Exec(`
		INSERT INTO latest_prices (symbol, price, source, updated_at)
		VALUES (?, ?, 'manual', CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			price = excluded.price,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, symbol, price)
	if err != nil {
		return err
	}
	var oldPrice *float64
	if old != nil {
		oldPrice = floatPtr(old.Price)
	}
	c.logOperation("MANUAL_PRICE", &symbol, nil, oldPrice, floatPtr(price))
	return nil
}

// GetLatestPrice returns the stored price for one symbol, or nil when unknown.
func (c *Core) GetLatestPrice(symbol string) (*LatestPrice, error) {
	var lp LatestPrice
	err := c.db.QueryRow(
		"SELECT symbol, price, source, updated_at FROM latest_prices WHERE symbol = ?",
		normalizeSymbol(symbol),
	).Scan(&lp.Symbol, &lp.Price, &lp.Source, &lp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

// GetAllLatestPrices returns all stored prices keyed by symbol.
func (c *Core) GetAllLatestPrices() (map[string]LatestPrice, error) {
	rows, err := c.db.Query("SELECT symbol, price, source, updated_at FROM latest_prices")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]LatestPrice{}
	for rows.Next() {
		var lp LatestPrice
		if err := rows.Scan(&lp.Symbol, &lp.Price, &lp.Source, &lp.UpdatedAt); err != nil {
			return nil, err
		}
		result[lp.Symbol] = lp
	}
	return result, rows.Err()
}

// UpdatePrice fetches and stores the current price for one symbol.
func (c *Core) UpdatePrice(ctx context.Context, symbol string) (PriceResult, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return PriceResult{}, NewError(ErrCodeInvalidInput, "symbol required")
	}
	price, err := c.price.FetchPrice(ctx, symbol)
	if err != nil {
		c.logger.Warn("price fetch failed", "symbol", symbol, "err", err)
		return PriceResult{Message: err.Error()}, nil
	}
	if _, err := c.db.Exec(`
		INSERT INTO latest_prices (symbol, price, source, updated_at)
		VALUES (?, ?, 'cse', CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			price = excluded.price,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, symbol, price); err != nil {
		return PriceResult{}, err
	}
	c.logOperation("FETCH_PRICE", &symbol, nil, nil, floatPtr(price))
	return PriceResult{Price: floatPtr(price), Message: "ok"}, nil
}

// UpdateAllPrices refreshes prices for every active holding and allocation
// target. Individual failures are reported per symbol, not fatal.
func (c *Core) UpdateAllPrices(ctx context.Context) (map[string]PriceResult, error) {
	symbols := map[string]struct{}{}
	holdings, err := c.GetHoldings(false)
	if err != nil {
		return nil, err
	}
	for _, h := range holdings {
		symbols[h.Symbol] = struct{}{}
	}
	targets, err := c.GetAllocationTargets()
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		symbols[t.Symbol] = struct{}{}
	}

	results := map[string]PriceResult{}
	for symbol := range symbols {
		result, err := c.UpdatePrice(ctx, symbol)
		if err != nil {
			return nil, err
		}
		results[symbol] = result
	}
	return results, nil
}
