package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps builds in process memory. It is used when no database
// URL is configured and by the Lambda entrypoint.
type MemoryStore struct {
	mu     sync.RWMutex
	builds map[uuid.UUID]*BuildRecord
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		builds: make(map[uuid.UUID]*BuildRecord),
		now:    time.Now,
	}
}

func (s *MemoryStore) CreateBuild(_ context.Context, b *BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	cp := *b
	cp.Totals = copyStats(b.Totals)
	s.builds[b.ID] = &cp
	return nil
}

func (s *MemoryStore) GetBuild(_ context.Context, id uuid.UUID) (*BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.builds[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	cp.Totals = copyStats(b.Totals)
	return &cp, nil
}

func (s *MemoryStore) ListBuilds(_ context.Context, filter BuildFilter) ([]*BuildRecord, error) {
	s.mu.RLock()
	var out []*BuildRecord
	for _, b := range s.builds {
		if filter.Mode != nil && b.Mode != *filter.Mode {
			continue
		}
		if filter.Objective != "" && b.Objective != filter.Objective {
			continue
		}
		cp := *b
		cp.Totals = copyStats(b.Totals)
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if limit := filter.PageSize(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetBuildStats(_ context.Context) (*BuildStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &BuildStats{ByMode: make(map[string]int)}
	for _, b := range s.builds {
		stats.Total++
		stats.ByMode[string(b.Mode)]++
		if stats.LastBuilt == nil || b.CreatedAt.After(*stats.LastBuilt) {
			t := b.CreatedAt
			stats.LastBuilt = &t
		}
	}
	return stats, nil
}

func (s *MemoryStore) Close() error { return nil }

func copyStats(in Stats) Stats {
	if in == nil {
		return nil
	}
	out := make(Stats, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
