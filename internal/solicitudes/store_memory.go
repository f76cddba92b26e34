package solicitudes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gesservorconv/pkg/domain"
	"gesservorconv/pkg/platform/sentinel"
)

// InMemoryStore backs tests and local development. It enforces the same
// at-most-one-actual rule the partial unique index enforces in PostgreSQL.
type InMemoryStore struct {
	mu          sync.RWMutex
	solicitudes map[domain.SolicitudID]*Solicitud
	propuestas  map[domain.PropuestaID]*Propuesta
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		solicitudes: make(map[domain.SolicitudID]*Solicitud),
		propuestas:  make(map[domain.PropuestaID]*Propuesta),
	}
}

func (s *InMemoryStore) SaveSolicitud(_ context.Context, sol *Solicitud) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.solicitudes[sol.ID]; ok {
		return fmt.Errorf("solicitud %s: %w", sol.ID, sentinel.ErrConflict)
	}
	now := time.Now()
	sol.CreadaEn = now
	sol.ActualizadaEn = now
	copia := *sol
	s.solicitudes[sol.ID] = &copia
	return nil
}

func (s *InMemoryStore) UpdateSolicitud(_ context.Context, sol *Solicitud) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existente, ok := s.solicitudes[sol.ID]
	if !ok {
		return fmt.Errorf("solicitud %s: %w", sol.ID, sentinel.ErrNotFound)
	}
	sol.CreadaEn = existente.CreadaEn
	sol.ActualizadaEn = time.Now()
	copia := *sol
	s.solicitudes[sol.ID] = &copia
	return nil
}

func (s *InMemoryStore) GetSolicitud(_ context.Context, id domain.SolicitudID) (*Solicitud, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sol, ok := s.solicitudes[id]
	if !ok {
		return nil, fmt.Errorf("solicitud %s: %w", id, sentinel.ErrNotFound)
	}
	copia := *sol
	return &copia, nil
}

func (s *InMemoryStore) ListByComitente(_ context.Context, comitenteID domain.ComitenteID, limit, offset int) ([]*Solicitud, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var propias []*Solicitud
	for _, sol := range s.solicitudes {
		if sol.ComitenteID == comitenteID {
			propias = append(propias, sol)
		}
	}
	sort.Slice(propias, func(i, j int) bool {
		return propias[i].CreadaEn.After(propias[j].CreadaEn)
	})

	if offset >= len(propias) {
		return nil, nil
	}
	propias = propias[offset:]
	if limit > 0 && limit < len(propias) {
		propias = propias[:limit]
	}

	out := make([]*Solicitud, len(propias))
	for i, sol := range propias {
		copia := *sol
		out[i] = &copia
	}
	return out, nil
}

func (s *InMemoryStore) SavePropuesta(_ context.Context, p *Propuesta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.propuestas[p.ID]; ok {
		return fmt.Errorf("propuesta %s: %w", p.ID, sentinel.ErrConflict)
	}
	if p.Actual {
		if err := s.sinOtraActual(p.SolicitudID, p.ID); err != nil {
			return err
		}
	}
	now := time.Now()
	p.CreadaEn = now
	p.ActualizadaEn = now
	copia := *p
	s.propuestas[p.ID] = &copia
	return nil
}

func (s *InMemoryStore) UpdatePropuesta(_ context.Context, p *Propuesta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existente, ok := s.propuestas[p.ID]
	if !ok {
		return fmt.Errorf("propuesta %s: %w", p.ID, sentinel.ErrNotFound)
	}
	if p.Actual {
		if err := s.sinOtraActual(p.SolicitudID, p.ID); err != nil {
			return err
		}
	}
	p.CreadaEn = existente.CreadaEn
	p.ActualizadaEn = time.Now()
	copia := *p
	s.propuestas[p.ID] = &copia
	return nil
}

func (s *InMemoryStore) GetPropuesta(_ context.Context, id domain.PropuestaID) (*Propuesta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.propuestas[id]
	if !ok {
		return nil, fmt.Errorf("propuesta %s: %w", id, sentinel.ErrNotFound)
	}
	copia := *p
	return &copia, nil
}

func (s *InMemoryStore) GetPropuestaActual(_ context.Context, solicitudID domain.SolicitudID) (*Propuesta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.propuestas {
		if p.SolicitudID == solicitudID && p.Actual {
			copia := *p
			return &copia, nil
		}
	}
	return nil, fmt.Errorf("propuesta actual for %s: %w", solicitudID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListPropuestas(_ context.Context, solicitudID domain.SolicitudID) ([]*Propuesta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var propias []*Propuesta
	for _, p := range s.propuestas {
		if p.SolicitudID == solicitudID {
			copia := *p
			propias = append(propias, &copia)
		}
	}
	sort.Slice(propias, func(i, j int) bool {
		return propias[i].CreadaEn.Before(propias[j].CreadaEn)
	})
	return propias, nil
}

// sinOtraActual mirrors the partial unique index on (solicitud_id) WHERE
// actual.
func (s *InMemoryStore) sinOtraActual(solicitudID domain.SolicitudID, salvo domain.PropuestaID) error {
	for _, p := range s.propuestas {
		if p.SolicitudID == solicitudID && p.Actual && p.ID != salvo {
			return fmt.Errorf("solicitud %s already has an actual propuesta: %w",
				solicitudID, sentinel.ErrConflict)
		}
	}
	return nil
}
