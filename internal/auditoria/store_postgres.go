package auditoria

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gesservorconv/pkg/platform/sentinel"
	txcontext "gesservorconv/pkg/platform/tx"
)

// Domain audit tables this store may write to. Table names are interpolated
// into SQL, so anything outside this set is rejected at construction.
var tablasAuditoria = map[string]bool{
	TablaCuentas:     true,
	TablaSolicitudes: true,
	TablaSistema:     true,
}

// PostgresStore persists one domain's audit ledger. A separate instance is
// constructed per domain table and bound to watched tables through the
// capture registry.
type PostgresStore struct {
	db    *sql.DB
	tabla string
}

// NewPostgres builds a ledger store for one of the known audit tables.
func NewPostgres(db *sql.DB, tablaAuditoria string) (*PostgresStore, error) {
	if !tablasAuditoria[tablaAuditoria] {
		return nil, fmt.Errorf("unknown audit table %q", tablaAuditoria)
	}
	return &PostgresStore{db: db, tabla: tablaAuditoria}, nil
}

type dbQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer prefers the transaction travelling in ctx so the audit row commits
// and rolls back with the originating mutation.
func (s *PostgresStore) execer(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, registro *RegistroAuditoria) error {
	if !registro.Valida() {
		return fmt.Errorf("audit row for %q has neither old nor new values: %w",
			registro.Tabla, sentinel.ErrInvalidState)
	}

	anteriores, err := marshalValores(registro.ValoresAnteriores)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	nuevos, err := marshalValores(registro.ValoresNuevos)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	if registro.CapturadoEn.IsZero() {
		registro.CapturadoEn = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (tabla, capturado_en, valores_anteriores, valores_nuevos)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.tabla)

	if err := s.execer(ctx).QueryRowContext(ctx, query,
		registro.Tabla,
		registro.CapturadoEn,
		anteriores,
		nuevos,
	).Scan(&registro.ID); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "check_violation" {
			return fmt.Errorf("audit check constraint: %w", sentinel.ErrInvalidState)
		}
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByTabla(ctx context.Context, tabla string, limit, offset int) ([]RegistroAuditoria, error) {
	query := fmt.Sprintf(`
		SELECT id, tabla, capturado_en, valores_anteriores, valores_nuevos
		FROM %s
		WHERE tabla = $1
		ORDER BY capturado_en DESC, id DESC
		LIMIT $2 OFFSET $3
	`, s.tabla)

	rows, err := s.db.QueryContext(ctx, query, tabla, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit rows: %w", err)
	}
	defer rows.Close()

	var registros []RegistroAuditoria
	for rows.Next() {
		var (
			registro   RegistroAuditoria
			anteriores []byte
			nuevos     []byte
		)
		if err := rows.Scan(
			&registro.ID,
			&registro.Tabla,
			&registro.CapturadoEn,
			&anteriores,
			&nuevos,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if registro.ValoresAnteriores, err = unmarshalValores(anteriores); err != nil {
			return nil, fmt.Errorf("decode old values: %w", err)
		}
		if registro.ValoresNuevos, err = unmarshalValores(nuevos); err != nil {
			return nil, fmt.Errorf("decode new values: %w", err)
		}
		registros = append(registros, registro)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return registros, nil
}

func (s *PostgresStore) CountByTabla(ctx context.Context, tabla string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tabla = $1`, s.tabla)

	var n int64
	if err := s.db.QueryRowContext(ctx, query, tabla).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit rows: %w", err)
	}
	return n, nil
}

// marshalValores maps nil to SQL NULL so the CHECK constraint sees the
// nullability the capture rules produced, not an empty JSON object.
func marshalValores(valores map[string]string) (any, error) {
	if valores == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(valores)
	if err != nil {
		return nil, err
	}
	return encoded, nil
}

func unmarshalValores(raw []byte) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}
	var valores map[string]string
	if err := json.Unmarshal(raw, &valores); err != nil {
		return nil, err
	}
	return valores, nil
}
