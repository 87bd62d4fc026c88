package archive

import (
	"context"
	"sync"

	"quiz-session-host/internal/domain"
)

// MemoryArchive keeps records in-process; the default when no store is
// configured.
type MemoryArchive struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{records: make(map[string]Record)}
}

func (a *MemoryArchive) Save(_ context.Context, record Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[record.SessionID] = record
	return nil
}

func (a *MemoryArchive) Load(_ context.Context, sessionID string) (Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	record, ok := a.records[sessionID]
	if !ok {
		return Record{}, domain.ErrResultsNotFound
	}
	return record, nil
}
