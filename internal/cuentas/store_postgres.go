package cuentas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gesservorconv/pkg/domain"
	"gesservorconv/pkg/platform/sentinel"
	txcontext "gesservorconv/pkg/platform/tx"
)

// PostgresStore persists account entities. Mutations join the transaction
// travelling in ctx so the audit row written by the capture engine commits
// with them; the gate's fresh reads run outside any transaction helper and
// observe the last committed row (read committed).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) SaveComitente(ctx context.Context, c *Comitente) error {
	now := time.Now()
	c.CreadoEn = now
	c.ActualizadoEn = now

	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO comitentes (id, usuario_id, razon_social, cuit, habilitado, habilitado_organizaciones, creado_en, actualizado_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID.String(), c.UsuarioID.String(), c.RazonSocial, c.CUIT, c.Habilitado,
		pq.Array(c.HabilitadoOrganizaciones), c.CreadoEn, c.ActualizadoEn)
	if err != nil {
		return fmt.Errorf("insert comitente: %w", traducirPQ(err))
	}
	return nil
}

func (s *PostgresStore) UpdateComitente(ctx context.Context, c *Comitente) error {
	c.ActualizadoEn = time.Now()

	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE comitentes
		SET usuario_id = $2, razon_social = $3, cuit = $4, habilitado = $5,
		    habilitado_organizaciones = $6, actualizado_en = $7
		WHERE id = $1
	`, c.ID.String(), c.UsuarioID.String(), c.RazonSocial, c.CUIT, c.Habilitado,
		pq.Array(c.HabilitadoOrganizaciones), c.ActualizadoEn)
	if err != nil {
		return fmt.Errorf("update comitente: %w", traducirPQ(err))
	}
	return requireAffected(res, "comitente", c.ID.String())
}

func (s *PostgresStore) GetComitente(ctx context.Context, id domain.ComitenteID) (*Comitente, error) {
	var (
		c         Comitente
		rawID     uuid.UUID
		usuarioID uuid.UUID
		flags     pq.BoolArray
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, usuario_id, razon_social, cuit, habilitado, habilitado_organizaciones, creado_en, actualizado_en
		FROM comitentes
		WHERE id = $1
	`, id.String()).Scan(&rawID, &usuarioID, &c.RazonSocial, &c.CUIT, &c.Habilitado, &flags, &c.CreadoEn, &c.ActualizadoEn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comitente %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get comitente: %w", err)
	}
	c.ID = domain.ComitenteID(rawID)
	c.UsuarioID = domain.UsuarioID(usuarioID)
	c.HabilitadoOrganizaciones = flags
	return &c, nil
}

func (s *PostgresStore) SaveResponsable(ctx context.Context, r *ResponsableTecnico) error {
	now := time.Now()
	r.CreadoEn = now
	r.ActualizadoEn = now

	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO responsables_tecnicos (id, usuario_id, nombre, cuil, habilitado, habilitado_organizaciones, creado_en, actualizado_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID.String(), r.UsuarioID.String(), r.Nombre, r.CUIL, r.Habilitado,
		pq.Array(r.HabilitadoOrganizaciones), r.CreadoEn, r.ActualizadoEn)
	if err != nil {
		return fmt.Errorf("insert responsable: %w", traducirPQ(err))
	}
	return nil
}

func (s *PostgresStore) UpdateResponsable(ctx context.Context, r *ResponsableTecnico) error {
	r.ActualizadoEn = time.Now()

	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE responsables_tecnicos
		SET usuario_id = $2, nombre = $3, cuil = $4, habilitado = $5,
		    habilitado_organizaciones = $6, actualizado_en = $7
		WHERE id = $1
	`, r.ID.String(), r.UsuarioID.String(), r.Nombre, r.CUIL, r.Habilitado,
		pq.Array(r.HabilitadoOrganizaciones), r.ActualizadoEn)
	if err != nil {
		return fmt.Errorf("update responsable: %w", traducirPQ(err))
	}
	return requireAffected(res, "responsable", r.ID.String())
}

func (s *PostgresStore) GetResponsable(ctx context.Context, id domain.ResponsableID) (*ResponsableTecnico, error) {
	var (
		r         ResponsableTecnico
		rawID     uuid.UUID
		usuarioID uuid.UUID
		flags     pq.BoolArray
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, usuario_id, nombre, cuil, habilitado, habilitado_organizaciones, creado_en, actualizado_en
		FROM responsables_tecnicos
		WHERE id = $1
	`, id.String()).Scan(&rawID, &usuarioID, &r.Nombre, &r.CUIL, &r.Habilitado, &flags, &r.CreadoEn, &r.ActualizadoEn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("responsable %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get responsable: %w", err)
	}
	r.ID = domain.ResponsableID(rawID)
	r.UsuarioID = domain.UsuarioID(usuarioID)
	r.HabilitadoOrganizaciones = flags
	return &r, nil
}

func (s *PostgresStore) SaveSecretario(ctx context.Context, sec *Secretario) error {
	now := time.Now()
	sec.CreadoEn = now
	sec.ActualizadoEn = now

	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO secretarios (id, usuario_id, nombre, habilitado, creado_en, actualizado_en)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sec.ID.String(), sec.UsuarioID.String(), sec.Nombre, sec.Habilitado, sec.CreadoEn, sec.ActualizadoEn)
	if err != nil {
		return fmt.Errorf("insert secretario: %w", traducirPQ(err))
	}
	return nil
}

func (s *PostgresStore) UpdateSecretario(ctx context.Context, sec *Secretario) error {
	sec.ActualizadoEn = time.Now()

	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE secretarios
		SET usuario_id = $2, nombre = $3, habilitado = $4, actualizado_en = $5
		WHERE id = $1
	`, sec.ID.String(), sec.UsuarioID.String(), sec.Nombre, sec.Habilitado, sec.ActualizadoEn)
	if err != nil {
		return fmt.Errorf("update secretario: %w", traducirPQ(err))
	}
	return requireAffected(res, "secretario", sec.ID.String())
}

func (s *PostgresStore) GetSecretario(ctx context.Context, id domain.SecretarioID) (*Secretario, error) {
	var (
		sec       Secretario
		rawID     uuid.UUID
		usuarioID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, usuario_id, nombre, habilitado, creado_en, actualizado_en
		FROM secretarios
		WHERE id = $1
	`, id.String()).Scan(&rawID, &usuarioID, &sec.Nombre, &sec.Habilitado, &sec.CreadoEn, &sec.ActualizadoEn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("secretario %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get secretario: %w", err)
	}
	sec.ID = domain.SecretarioID(rawID)
	sec.UsuarioID = domain.UsuarioID(usuarioID)
	return &sec, nil
}

func requireAffected(res sql.Result, entidad, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", entidad, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", entidad, id, sentinel.ErrNotFound)
	}
	return nil
}

// traducirPQ maps driver constraint errors onto store sentinels.
func traducirPQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%v: %w", pqErr.Constraint, sentinel.ErrConflict)
		case "foreign_key_violation":
			return fmt.Errorf("%v: %w", pqErr.Constraint, sentinel.ErrNotFound)
		case "check_violation":
			return fmt.Errorf("%v: %w", pqErr.Constraint, sentinel.ErrInvalidState)
		}
	}
	return err
}
