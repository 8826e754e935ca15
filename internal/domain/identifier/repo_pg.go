package identifier

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/c2s/ums/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) GetSystemByCode(ctx context.Context, code string) (*System, error) {
	var s System
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, code, display_name, system_generated, created_at
		FROM identifier_system WHERE code = $1`, code).
		Scan(&s.ID, &s.Code, &s.DisplayName, &s.SystemGenerated, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSystemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) ListSystemGenerated(ctx context.Context) ([]*System, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, code, display_name, system_generated, created_at
		FROM identifier_system WHERE system_generated ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var systems []*System
	for rows.Next() {
		var s System
		if err := rows.Scan(&s.ID, &s.Code, &s.DisplayName, &s.SystemGenerated, &s.CreatedAt); err != nil {
			return nil, err
		}
		systems = append(systems, &s)
	}
	return systems, rows.Err()
}

func (r *repoPG) FindByValueAndSystem(ctx context.Context, value, systemCode string) (*Identifier, error) {
	var ident Identifier
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT i.id, i.value, i.system_id, s.code, s.system_generated, i.created_at
		FROM identifier i
		JOIN identifier_system s ON s.id = i.system_id
		WHERE i.value = $1 AND s.code = $2`, value, systemCode).
		Scan(&ident.ID, &ident.Value, &ident.SystemID, &ident.SystemCode,
			&ident.SystemGenerated, &ident.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (r *repoPG) Create(ctx context.Context, ident *Identifier) error {
	ident.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO identifier (id, value, system_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		ident.ID, ident.Value, ident.SystemID).
		Scan(&ident.CreatedAt)
}

func (r *repoPG) DeleteIfUnreferenced(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM identifier i
		WHERE i.id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM demographics_identifier di WHERE di.identifier_id = i.id
		  )`, id)
	return err
}
