package auditoria

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gesservorconv/pkg/platform/sentinel"
)

// InMemoryStore keeps audit rows in memory for tests and single-node dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []RegistroAuditoria
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Append(_ context.Context, registro *RegistroAuditoria) error {
	if !registro.Valida() {
		return fmt.Errorf("audit row for %q has neither old nor new values: %w",
			registro.Tabla, sentinel.ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	registro.ID = s.nextID
	s.nextID++
	if registro.CapturadoEn.IsZero() {
		registro.CapturadoEn = time.Now()
	}
	s.rows = append(s.rows, *registro)
	return nil
}

func (s *InMemoryStore) ListByTabla(_ context.Context, tabla string, limit, offset int) ([]RegistroAuditoria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first: walk the append log backwards.
	var matched []RegistroAuditoria
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].Tabla == tabla {
			matched = append(matched, s.rows[i])
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) CountByTabla(_ context.Context, tabla string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, row := range s.rows {
		if row.Tabla == tabla {
			n++
		}
	}
	return n, nil
}
