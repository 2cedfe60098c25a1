package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RateTable maps a currency code to its rate expressed as fiat units per
// satoshi. The table is treated as a snapshot: replaced wholesale on each
// refresh, never patched in place.
type RateTable map[string]decimal.Decimal

// RateClient polls the external exchange-rate endpoint and keeps the latest
// table snapshot. Consumers read through GetTable or subscribe via onUpdate.
type RateClient struct {
	onUpdate     func(RateTable)
	table        RateTable
	mu           sync.RWMutex
	pollInterval time.Duration
	apiURL       string
	httpClient   *http.Client
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewRateClient creates a rate client for the given endpoint.
func NewRateClient(onUpdate func(RateTable), apiURL string, pollIntervalSec int) *RateClient {
	c := &RateClient{
		onUpdate:     onUpdate,
		table:        nil,
		pollInterval: 60 * time.Second,
		apiURL:       apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if pollIntervalSec > 0 {
		c.pollInterval = time.Duration(pollIntervalSec) * time.Second
	}
	return c
}

// Start begins polling for rate table updates
func (c *RateClient) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// Fetch immediately on start
	if err := c.fetchTable(ctx); err != nil {
		slog.Warn("Initial rate table fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Rate polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Rate polling stopped")
				return
			case <-ticker.C:
				if err := c.fetchTable(ctx); err != nil {
					slog.Warn("Rate table fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// fetchTable fetches the current rate table with retry logic
func (c *RateClient) fetchTable(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s
			delay := time.Duration(1<<uint(i-1)) * time.Second
			slog.Info("Retrying rate table fetch", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doFetch(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("Rate table fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return lastErr
}

func (c *RateClient) doFetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var table RateTable
	if err := json.Unmarshal(body, &table); err != nil {
		return err
	}

	if len(table) == 0 {
		return fmt.Errorf("empty rate table from %s", c.apiURL)
	}
	for code, rate := range table {
		if !rate.IsPositive() {
			return fmt.Errorf("non-positive rate for %s: %s", code, rate)
		}
	}

	c.mu.Lock()
	changed := !c.table.Equal(table)
	c.table = table
	c.mu.Unlock()

	if changed {
		slog.Info("Rate table updated", slog.Int("currencies", len(table)))
		if c.onUpdate != nil {
			c.onUpdate(table)
		}
	}

	return nil
}

// Stop stops the polling
func (c *RateClient) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}

// GetTable returns the latest rate table snapshot, or nil before first fetch.
func (c *RateClient) GetTable() RateTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table
}

// Equal reports whether two tables carry the same rates.
func (t RateTable) Equal(other RateTable) bool {
	if len(t) != len(other) {
		return false
	}
	for code, rate := range t {
		o, ok := other[code]
		if !ok || !rate.Equal(o) {
			return false
		}
	}
	return true
}
