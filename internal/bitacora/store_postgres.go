package bitacora

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"gesservorconv/pkg/platform/sentinel"
)

// PostgresStore persists access log entries in the bitacora table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, r *Registro) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitacora (id, cliente_id, registrado_en, navegador, usuario_id, mensaje)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID.String(), r.ClienteID, r.RegistradoEn, r.Navegador, r.UsuarioID, r.Mensaje)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("bitacora entry for %s at %s: %w",
				r.ClienteID, r.RegistradoEn, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert bitacora entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCliente(ctx context.Context, clienteID string, limit, offset int) ([]*Registro, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cliente_id, registrado_en, navegador, usuario_id, mensaje
		FROM bitacora
		WHERE cliente_id = $1
		ORDER BY registrado_en DESC, id DESC
		LIMIT $2 OFFSET $3
	`, clienteID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query bitacora: %w", err)
	}
	defer rows.Close()

	var items []*Registro
	for rows.Next() {
		var (
			r         Registro
			usuarioID sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ClienteID, &r.RegistradoEn, &r.Navegador, &usuarioID, &r.Mensaje); err != nil {
			return nil, fmt.Errorf("scan bitacora entry: %w", err)
		}
		if usuarioID.Valid {
			r.UsuarioID = &usuarioID.String
		}
		items = append(items, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bitacora: %w", err)
	}
	return items, nil
}
