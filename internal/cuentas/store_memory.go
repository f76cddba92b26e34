package cuentas

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gesservorconv/pkg/domain"
	"gesservorconv/pkg/platform/sentinel"
)

// InMemoryStore backs tests and local development.
type InMemoryStore struct {
	mu           sync.RWMutex
	comitentes   map[domain.ComitenteID]*Comitente
	responsables map[domain.ResponsableID]*ResponsableTecnico
	secretarios  map[domain.SecretarioID]*Secretario
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		comitentes:   make(map[domain.ComitenteID]*Comitente),
		responsables: make(map[domain.ResponsableID]*ResponsableTecnico),
		secretarios:  make(map[domain.SecretarioID]*Secretario),
	}
}

func (s *InMemoryStore) SaveComitente(_ context.Context, c *Comitente) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comitentes[c.ID]; ok {
		return fmt.Errorf("comitente %s: %w", c.ID, sentinel.ErrConflict)
	}
	now := time.Now()
	c.CreadoEn = now
	c.ActualizadoEn = now
	copia := *c
	s.comitentes[c.ID] = &copia
	return nil
}

func (s *InMemoryStore) UpdateComitente(_ context.Context, c *Comitente) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existente, ok := s.comitentes[c.ID]
	if !ok {
		return fmt.Errorf("comitente %s: %w", c.ID, sentinel.ErrNotFound)
	}
	c.CreadoEn = existente.CreadoEn
	c.ActualizadoEn = time.Now()
	copia := *c
	s.comitentes[c.ID] = &copia
	return nil
}

func (s *InMemoryStore) GetComitente(_ context.Context, id domain.ComitenteID) (*Comitente, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comitentes[id]
	if !ok {
		return nil, fmt.Errorf("comitente %s: %w", id, sentinel.ErrNotFound)
	}
	copia := *c
	return &copia, nil
}

func (s *InMemoryStore) SaveResponsable(_ context.Context, r *ResponsableTecnico) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responsables[r.ID]; ok {
		return fmt.Errorf("responsable %s: %w", r.ID, sentinel.ErrConflict)
	}
	now := time.Now()
	r.CreadoEn = now
	r.ActualizadoEn = now
	copia := *r
	s.responsables[r.ID] = &copia
	return nil
}

func (s *InMemoryStore) UpdateResponsable(_ context.Context, r *ResponsableTecnico) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existente, ok := s.responsables[r.ID]
	if !ok {
		return fmt.Errorf("responsable %s: %w", r.ID, sentinel.ErrNotFound)
	}
	r.CreadoEn = existente.CreadoEn
	r.ActualizadoEn = time.Now()
	copia := *r
	s.responsables[r.ID] = &copia
	return nil
}

func (s *InMemoryStore) GetResponsable(_ context.Context, id domain.ResponsableID) (*ResponsableTecnico, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responsables[id]
	if !ok {
		return nil, fmt.Errorf("responsable %s: %w", id, sentinel.ErrNotFound)
	}
	copia := *r
	return &copia, nil
}

func (s *InMemoryStore) SaveSecretario(_ context.Context, sec *Secretario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secretarios[sec.ID]; ok {
		return fmt.Errorf("secretario %s: %w", sec.ID, sentinel.ErrConflict)
	}
	now := time.Now()
	sec.CreadoEn = now
	sec.ActualizadoEn = now
	copia := *sec
	s.secretarios[sec.ID] = &copia
	return nil
}

func (s *InMemoryStore) UpdateSecretario(_ context.Context, sec *Secretario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existente, ok := s.secretarios[sec.ID]
	if !ok {
		return fmt.Errorf("secretario %s: %w", sec.ID, sentinel.ErrNotFound)
	}
	sec.CreadoEn = existente.CreadoEn
	sec.ActualizadoEn = time.Now()
	copia := *sec
	s.secretarios[sec.ID] = &copia
	return nil
}

func (s *InMemoryStore) GetSecretario(_ context.Context, id domain.SecretarioID) (*Secretario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.secretarios[id]
	if !ok {
		return nil, fmt.Errorf("secretario %s: %w", id, sentinel.ErrNotFound)
	}
	copia := *sec
	return &copia, nil
}
