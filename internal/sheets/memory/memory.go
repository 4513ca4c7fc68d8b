package memory

import (
	"context"
	"sync"

	ports "categoria/internal/sheets"
)

// Source is an in-memory record source for development and tests.
type Source struct {
	mu      sync.RWMutex
	records []ports.LabeledRecord
}

var _ ports.RecordSource = (*Source)(nil)

func NewSource(records ...ports.LabeledRecord) *Source {
	return &Source{records: records}
}

func (s *Source) Add(records ...ports.LabeledRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

func (s *Source) ListLabeled(_ context.Context) ([]ports.LabeledRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.LabeledRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
