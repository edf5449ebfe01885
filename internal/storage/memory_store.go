package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/Adda-Baaj/course-grader/internal/domain"
)

type memoryEntry struct {
	rec    domain.GradeRecord
	expiry time.Time
}

// memoryStore keeps records for the life of the process. List is ordered by key, like bbolt.
type memoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	recordTTL time.Duration
	now       func() time.Time
}

func newMemoryStore(opts Options) *memoryStore {
	return &memoryStore{
		entries:   make(map[string]memoryEntry),
		recordTTL: opts.RecordTTL,
		now:       time.Now,
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) Lookup(key string) (domain.GradeRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return domain.GradeRecord{}, false, nil
	}
	if !e.expiry.After(m.now()) {
		delete(m.entries, key)
		return domain.GradeRecord{}, false, nil
	}
	return e.rec, true, nil
}

func (m *memoryStore) Record(rec domain.GradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[rec.Submission.Key()] = memoryEntry{rec: rec, expiry: m.now().Add(m.recordTTL)}
	return nil
}

func (m *memoryStore) List() ([]domain.GradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if e.expiry.After(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]domain.GradeRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.entries[k].rec)
	}
	return out, nil
}
