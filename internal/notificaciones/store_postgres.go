package notificaciones

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gesservorconv/pkg/platform/sentinel"
)

// PostgresStore persists notifications in the notificaciones table. Rows are
// never deleted while their recipient exists; the schema enforces that with
// ON DELETE RESTRICT on the recipient foreign key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, n *Notificacion) error {
	if n.CreadaEn.IsZero() {
		n.CreadaEn = time.Now()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notificaciones (destinatario_id, tipo, titulo, cuerpo, enlace, creada_en)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, n.DestinatarioID, n.Tipo, n.Titulo, n.Cuerpo, n.Enlace, n.CreadaEn).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Notificacion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, destinatario_id, tipo, titulo, cuerpo, enlace, creada_en, leida_en
		FROM notificaciones
		WHERE id = $1
	`, id)

	n, err := scanNotificacion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListByDestinatario(ctx context.Context, destinatarioID string, limit, offset int) ([]*Notificacion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, destinatario_id, tipo, titulo, cuerpo, enlace, creada_en, leida_en
		FROM notificaciones
		WHERE destinatario_id = $1
		ORDER BY creada_en DESC, id DESC
		LIMIT $2 OFFSET $3
	`, destinatarioID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var items []*Notificacion
	for rows.Next() {
		n, err := scanNotificacion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountNoLeidas(ctx context.Context, destinatarioID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notificaciones
		WHERE destinatario_id = $1 AND leida_en IS NULL
	`, destinatarioID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkLeida stamps the read time once; already-read rows are left untouched
// so the first timestamp survives repeated marks.
func (s *PostgresStore) MarkLeida(ctx context.Context, id int64, destinatarioID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notificaciones
		SET leida_en = COALESCE(leida_en, NOW())
		WHERE id = $1 AND destinatario_id = $2
	`, id, destinatarioID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotificacion(row rowScanner) (*Notificacion, error) {
	var (
		n      Notificacion
		enlace sql.NullString
		leida  sql.NullTime
	)
	if err := row.Scan(
		&n.ID,
		&n.DestinatarioID,
		&n.Tipo,
		&n.Titulo,
		&n.Cuerpo,
		&enlace,
		&n.CreadaEn,
		&leida,
	); err != nil {
		return nil, err
	}
	n.Enlace = enlace.String
	if leida.Valid {
		n.LeidaEn = &leida.Time
	}
	return &n, nil
}
