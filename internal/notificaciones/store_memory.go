package notificaciones

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gesservorconv/pkg/platform/sentinel"
)

// InMemoryStore backs tests and local development.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	items  []*Notificacion
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Save(_ context.Context, n *Notificacion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = s.nextID
	s.nextID++
	if n.CreadaEn.IsZero() {
		n.CreadaEn = time.Now()
	}
	copia := *n
	s.items = append(s.items, &copia)
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id int64) (*Notificacion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.items {
		if n.ID == id {
			copia := *n
			return &copia, nil
		}
	}
	return nil, fmt.Errorf("notification %d: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByDestinatario(_ context.Context, destinatarioID string, limit, offset int) ([]*Notificacion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var propias []*Notificacion
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].DestinatarioID == destinatarioID {
			propias = append(propias, s.items[i])
		}
	}

	if offset >= len(propias) {
		return nil, nil
	}
	propias = propias[offset:]
	if limit > 0 && limit < len(propias) {
		propias = propias[:limit]
	}

	out := make([]*Notificacion, len(propias))
	for i, n := range propias {
		copia := *n
		out[i] = &copia
	}
	return out, nil
}

func (s *InMemoryStore) CountNoLeidas(_ context.Context, destinatarioID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.items {
		if n.DestinatarioID == destinatarioID && n.LeidaEn == nil {
			count++
		}
	}
	return count, nil
}

// MarkLeida stamps the read time once. Marking an already-read notification
// is a no-op success so a double click never errors.
func (s *InMemoryStore) MarkLeida(_ context.Context, id int64, destinatarioID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.items {
		if n.ID != id {
			continue
		}
		if n.DestinatarioID != destinatarioID {
			// Someone else's notification reads as absent, not forbidden.
			return fmt.Errorf("notification %d: %w", id, sentinel.ErrNotFound)
		}
		if n.LeidaEn == nil {
			ahora := time.Now()
			n.LeidaEn = &ahora
		}
		return nil
	}
	return fmt.Errorf("notification %d: %w", id, sentinel.ErrNotFound)
}
