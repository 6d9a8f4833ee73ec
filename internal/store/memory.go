// Package store keeps the daily account history that training and the
// history endpoint read from.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AngelCh415/adforecast/internal/models"
)

// HistoryStore holds one record per calendar day. Writing a day that already
// exists replaces it.
type HistoryStore interface {
	WriteRecords(ctx context.Context, recs []models.RawRecord) error
	// Range returns records with from <= date <= to, sorted by date. A zero
	// bound is open.
	Range(ctx context.Context, from, to time.Time) ([]models.RawRecord, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	days map[time.Time]models.RawRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[time.Time]models.RawRecord)}
}

func (s *MemoryStore) WriteRecords(_ context.Context, recs []models.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		r.Date = models.Day(r.Date)
		s.days[r.Date] = r
	}
	return nil
}

func (s *MemoryStore) Range(_ context.Context, from, to time.Time) ([]models.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RawRecord
	for d, r := range s.days {
		if inRange(d, from, to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days)
}

func inRange(d, from, to time.Time) bool {
	if !from.IsZero() && d.Before(models.Day(from)) {
		return false
	}
	if !to.IsZero() && d.After(models.Day(to)) {
		return false
	}
	return true
}
