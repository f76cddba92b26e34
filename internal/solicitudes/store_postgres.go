package solicitudes

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

// PostgresStore persists the workflow. Mutations join the transaction in
// ctx so audit rows commit with them; the unique index
// propuestas_actual_unica (partial, WHERE actual) is the only guard on the
// one-actual rule — concurrent presenters lose with a conflict, never with
// two actual rows.
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

func (s *PostgresStore) SaveSolicitud(ctx context.Context, sol *Solicitud) error {
	now := time.Now()
	sol.CreadaEn = now
	sol.ActualizadaEn = now

	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO solicitudes (id, comitente_id, responsable_id, titulo, descripcion, estado, resultado, creada_en, actualizada_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sol.ID.String(), sol.ComitenteID.String(), nullableID(sol.ResponsableID),
		sol.Titulo, sol.Descripcion, string(sol.Estado), nullableString(string(sol.Resultado)),
		sol.CreadaEn, sol.ActualizadaEn)
	if err != nil {
		return fmt.Errorf("insert solicitud: %w", traducirPQ(err))
	}
	return nil
}

func (s *PostgresStore) UpdateSolicitud(ctx context.Context, sol *Solicitud) error {
	sol.ActualizadaEn = time.Now()

	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE solicitudes
		SET responsable_id = $2, titulo = $3, descripcion = $4, estado = $5,
		    resultado = $6, actualizada_en = $7
		WHERE id = $1
	`, sol.ID.String(), nullableID(sol.ResponsableID), sol.Titulo, sol.Descripcion,
		string(sol.Estado), nullableString(string(sol.Resultado)), sol.ActualizadaEn)
	if err != nil {
		return fmt.Errorf("update solicitud: %w", traducirPQ(err))
	}
	return requireAffected(res, "solicitud", sol.ID.String())
}

func (s *PostgresStore) GetSolicitud(ctx context.Context, id domain.SolicitudID) (*Solicitud, error) {
	sol, err := scanSolicitud(s.db.QueryRowContext(ctx, `
		SELECT id, comitente_id, responsable_id, titulo, descripcion, estado, resultado, creada_en, actualizada_en
		FROM solicitudes
		WHERE id = $1
	`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("solicitud %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get solicitud: %w", err)
	}
	return sol, nil
}

func (s *PostgresStore) ListByComitente(ctx context.Context, comitenteID domain.ComitenteID, limit, offset int) ([]*Solicitud, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, comitente_id, responsable_id, titulo, descripcion, estado, resultado, creada_en, actualizada_en
		FROM solicitudes
		WHERE comitente_id = $1
		ORDER BY creada_en DESC, id DESC
		LIMIT $2 OFFSET $3
	`, comitenteID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query solicitudes: %w", err)
	}
	defer rows.Close()

	var items []*Solicitud
	for rows.Next() {
		sol, err := scanSolicitud(rows)
		if err != nil {
			return nil, fmt.Errorf("scan solicitud: %w", err)
		}
		items = append(items, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solicitudes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SavePropuesta(ctx context.Context, p *Propuesta) error {
	now := time.Now()
	p.CreadaEn = now
	p.ActualizadaEn = now

	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO propuestas (id, solicitud_id, responsable_id, descripcion, monto_centavos, plazo_dias, actual, estado, creada_en, actualizada_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID.String(), p.SolicitudID.String(), p.ResponsableID.String(),
		p.Descripcion, p.MontoCentavos, p.PlazoDias, p.Actual, string(p.Estado),
		p.CreadaEn, p.ActualizadaEn)
	if err != nil {
		return fmt.Errorf("insert propuesta: %w", traducirPQ(err))
	}
	return nil
}

func (s *PostgresStore) UpdatePropuesta(ctx context.Context, p *Propuesta) error {
	p.ActualizadaEn = time.Now()

	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE propuestas
		SET descripcion = $2, monto_centavos = $3, plazo_dias = $4, actual = $5,
		    estado = $6, actualizada_en = $7
		WHERE id = $1
	`, p.ID.String(), p.Descripcion, p.MontoCentavos, p.PlazoDias, p.Actual,
		string(p.Estado), p.ActualizadaEn)
	if err != nil {
		return fmt.Errorf("update propuesta: %w", traducirPQ(err))
	}
	return requireAffected(res, "propuesta", p.ID.String())
}

func (s *PostgresStore) GetPropuesta(ctx context.Context, id domain.PropuestaID) (*Propuesta, error) {
	p, err := scanPropuesta(s.db.QueryRowContext(ctx, `
		SELECT id, solicitud_id, responsable_id, descripcion, monto_centavos, plazo_dias, actual, estado, creada_en, actualizada_en
		FROM propuestas
		WHERE id = $1
	`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("propuesta %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get propuesta: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPropuestaActual(ctx context.Context, solicitudID domain.SolicitudID) (*Propuesta, error) {
	p, err := scanPropuesta(s.db.QueryRowContext(ctx, `
		SELECT id, solicitud_id, responsable_id, descripcion, monto_centavos, plazo_dias, actual, estado, creada_en, actualizada_en
		FROM propuestas
		WHERE solicitud_id = $1 AND actual
	`, solicitudID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("propuesta actual for %s: %w", solicitudID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get propuesta actual: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPropuestas(ctx context.Context, solicitudID domain.SolicitudID) ([]*Propuesta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, solicitud_id, responsable_id, descripcion, monto_centavos, plazo_dias, actual, estado, creada_en, actualizada_en
		FROM propuestas
		WHERE solicitud_id = $1
		ORDER BY creada_en ASC, id ASC
	`, solicitudID.String())
	if err != nil {
		return nil, fmt.Errorf("query propuestas: %w", err)
	}
	defer rows.Close()

	var items []*Propuesta
	for rows.Next() {
		p, err := scanPropuesta(rows)
		if err != nil {
			return nil, fmt.Errorf("scan propuesta: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate propuestas: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSolicitud(row rowScanner) (*Solicitud, error) {
	var (
		sol           Solicitud
		rawID         uuid.UUID
		comitenteID   uuid.UUID
		responsableID sql.NullString
		estado        string
		resultado     sql.NullString
	)
	if err := row.Scan(
		&rawID,
		&comitenteID,
		&responsableID,
		&sol.Titulo,
		&sol.Descripcion,
		&estado,
		&resultado,
		&sol.CreadaEn,
		&sol.ActualizadaEn,
	); err != nil {
		return nil, err
	}
	sol.ID = domain.SolicitudID(rawID)
	sol.ComitenteID = domain.ComitenteID(comitenteID)
	sol.Estado = EstadoSolicitud(estado)
	sol.Resultado = Resultado(resultado.String)
	if responsableID.Valid {
		parsed, err := domain.ParseResponsableID(responsableID.String)
		if err != nil {
			return nil, err
		}
		sol.ResponsableID = parsed
	}
	return &sol, nil
}

func scanPropuesta(row rowScanner) (*Propuesta, error) {
	var (
		p             Propuesta
		rawID         uuid.UUID
		solicitudID   uuid.UUID
		responsableID uuid.UUID
		estado        string
	)
	if err := row.Scan(
		&rawID,
		&solicitudID,
		&responsableID,
		&p.Descripcion,
		&p.MontoCentavos,
		&p.PlazoDias,
		&p.Actual,
		&estado,
		&p.CreadaEn,
		&p.ActualizadaEn,
	); err != nil {
		return nil, err
	}
	p.ID = domain.PropuestaID(rawID)
	p.SolicitudID = domain.SolicitudID(solicitudID)
	p.ResponsableID = domain.ResponsableID(responsableID)
	p.Estado = EstadoPropuesta(estado)
	return &p, nil
}

func nullableID(id domain.ResponsableID) any {
	if id.IsNil() {
		return nil
	}
	return id.String()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
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
