package infra

import (
	"sync/atomic"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	tipsCreated   atomic.Uint64
	tipsClaimed   atomic.Uint64
	tipsWithdrawn atomic.Uint64
	tipsReclaimed atomic.Uint64
	rateRefreshes atomic.Uint64
	errorsTotal   atomic.Uint64

	// Gauges
	activeSockets atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTipCreated records a successfully created tip.
func (m *Metrics) RecordTipCreated() {
	m.tipsCreated.Add(1)
}

// RecordTipClaimed records a successful claim.
func (m *Metrics) RecordTipClaimed() {
	m.tipsClaimed.Add(1)
}

// RecordTipWithdrawn records a withdrawal.
func (m *Metrics) RecordTipWithdrawn() {
	m.tipsWithdrawn.Add(1)
}

// RecordTipReclaimed records an expired tip returned by the sweeper.
func (m *Metrics) RecordTipReclaimed() {
	m.tipsReclaimed.Add(1)
}

// RecordRateRefresh records a rate table refresh.
func (m *Metrics) RecordRateRefresh() {
	m.rateRefreshes.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementSockets increments active websocket connections by 1.
func (m *Metrics) IncrementSockets() {
	m.activeSockets.Add(1)
}

// DecrementSockets decrements active websocket connections by 1.
func (m *Metrics) DecrementSockets() {
	m.activeSockets.Add(-1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	TipsCreated   uint64 `json:"tips_created"`
	TipsClaimed   uint64 `json:"tips_claimed"`
	TipsWithdrawn uint64 `json:"tips_withdrawn"`
	TipsReclaimed uint64 `json:"tips_reclaimed"`
	RateRefreshes uint64 `json:"rate_refreshes"`
	ErrorsTotal   uint64 `json:"errors_total"`
	ActiveSockets int32  `json:"active_sockets"`
}

// Snapshot returns the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TipsCreated:   m.tipsCreated.Load(),
		TipsClaimed:   m.tipsClaimed.Load(),
		TipsWithdrawn: m.tipsWithdrawn.Load(),
		TipsReclaimed: m.tipsReclaimed.Load(),
		RateRefreshes: m.rateRefreshes.Load(),
		ErrorsTotal:   m.errorsTotal.Load(),
		ActiveSockets: m.activeSockets.Load(),
	}
}

// Reset zeroes all counters. Test helper.
func (m *Metrics) Reset() {
	m.tipsCreated.Store(0)
	m.tipsClaimed.Store(0)
	m.tipsWithdrawn.Store(0)
	m.tipsReclaimed.Store(0)
	m.rateRefreshes.Store(0)
	m.errorsTotal.Store(0)
	m.activeSockets.Store(0)
}
