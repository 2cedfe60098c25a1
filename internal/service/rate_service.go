package service

import (
	"sort"
	"sync"

	"lightsats/internal/infra"

	"github.com/shopspring/decimal"
)

// RateService manages the current exchange rate table snapshot
type RateService struct {
	mu    sync.RWMutex
	table infra.RateTable
}

// NewRateService creates a new RateService instance
func NewRateService() *RateService {
	return &RateService{}
}

// Replace swaps in a fresh rate table snapshot
func (s *RateService) Replace(table infra.RateTable) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.table = table
	infra.GlobalMetrics.RecordRateRefresh()
}

// Loaded reports whether a rate table has been fetched yet
func (s *RateService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.table) > 0
}

// Rate returns the rate for a currency code
func (s *RateService) Rate(code string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rate, ok := s.table[code]
	return rate, ok
}

// Table returns a copy of the current table
func (s *RateService) Table() infra.RateTable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(infra.RateTable, len(s.table))
	for code, rate := range s.table {
		result[code] = rate
	}
	return result
}

// Currencies returns the supported currency codes sorted for consistent ordering
func (s *RateService) Currencies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.table))
	for code := range s.table {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
