package patient

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

const patientCols = `id, demographics_id, registration_email, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.DemographicsID, &p.RegistrationEmail, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, demographics_id, registration_email)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		p.ID, p.DemographicsID, p.RegistrationEmail).
		Scan(&p.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByMRN(ctx context.Context, mrn, mrnSystemCode string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT p.id, p.demographics_id, p.registration_email, p.created_at
		FROM patient p
		JOIN demographics_identifier di ON di.demographics_id = p.demographics_id
		JOIN identifier i ON i.id = di.identifier_id
		JOIN identifier_system s ON s.id = i.system_id
		WHERE i.value = $1 AND s.code = $2`, mrn, mrnSystemCode))
}

func (r *repoPG) UpdateRegistrationEmail(ctx context.Context, id uuid.UUID, email string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET registration_email = $2 WHERE id = $1`, id, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *repoPG) AddRelationship(ctx context.Context, rel *Relationship) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_patient_relationship (user_id, patient_id, role_code)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, patient_id, role_code) DO UPDATE SET role_code = EXCLUDED.role_code
		RETURNING created_at`,
		rel.UserID, rel.PatientID, rel.RoleCode).
		Scan(&rel.CreatedAt)
}

func (r *repoPG) HasRelationship(ctx context.Context, userID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_patient_relationship
			WHERE user_id = $1 AND patient_id = $2
		)`, userID, patientID).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*PatientWithRole, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.demographics_id, p.registration_email, p.created_at, rel.role_code
		FROM user_patient_relationship rel
		JOIN patient p ON p.id = rel.patient_id
		WHERE rel.user_id = $1
		ORDER BY rel.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PatientWithRole
	for rows.Next() {
		var p PatientWithRole
		if err := rows.Scan(&p.ID, &p.DemographicsID, &p.RegistrationEmail,
			&p.CreatedAt, &p.RelationshipRole); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
