package cache

import "sync/atomic"

type MetricsSnapshot struct {
	Hits        uint64
	StaleHits   uint64
	Misses      uint64
	Expired     uint64
	Corrupt     uint64
	Writes      uint64
	Clears      uint64
	Fetches     uint64
	FetchErrors uint64
}

type Metrics struct {
	hits        atomic.Uint64
	staleHits   atomic.Uint64
	misses      atomic.Uint64
	expired     atomic.Uint64
	corrupt     atomic.Uint64
	writes      atomic.Uint64
	clears      atomic.Uint64
	fetches     atomic.Uint64
	fetchErrors atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Hits:        m.hits.Load(),
		StaleHits:   m.staleHits.Load(),
		Misses:      m.misses.Load(),
		Expired:     m.expired.Load(),
		Corrupt:     m.corrupt.Load(),
		Writes:      m.writes.Load(),
		Clears:      m.clears.Load(),
		Fetches:     m.fetches.Load(),
		FetchErrors: m.fetchErrors.Load(),
	}
}
