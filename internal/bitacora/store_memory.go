package bitacora

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gesservorconv/pkg/platform/sentinel"
)

type claveNatural struct {
	clienteID    string
	registradoEn time.Time
}

// InMemoryStore backs tests and local development.
type InMemoryStore struct {
	mu     sync.RWMutex
	items  []*Registro
	claves map[claveNatural]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{claves: make(map[claveNatural]bool)}
}

func (s *InMemoryStore) Save(_ context.Context, r *Registro) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clave := claveNatural{clienteID: r.ClienteID, registradoEn: r.RegistradoEn}
	if s.claves[clave] {
		return fmt.Errorf("bitacora entry for %s at %s: %w",
			r.ClienteID, r.RegistradoEn, sentinel.ErrConflict)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.claves[clave] = true
	copia := *r
	s.items = append(s.items, &copia)
	return nil
}

func (s *InMemoryStore) ListByCliente(_ context.Context, clienteID string, limit, offset int) ([]*Registro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var propias []*Registro
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].ClienteID == clienteID {
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

	out := make([]*Registro, len(propias))
	for i, r := range propias {
		copia := *r
		out[i] = &copia
	}
	return out, nil
}
