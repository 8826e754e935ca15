package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/c2s/ums/internal/domain/identifier"
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

const userCols = `id, user_auth_id, disabled, locale, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UserAuthID, &u.Disabled, &u.Locale, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	c := r.conn(ctx)

	u.ID = uuid.New()
	err := c.QueryRow(ctx, `
		INSERT INTO users (id, user_auth_id, disabled, locale)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		u.ID, u.UserAuthID, u.Disabled, u.Locale).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return err
	}

	d := &u.Demographics
	d.ID = uuid.New()
	_, err = c.Exec(ctx, `
		INSERT INTO demographics (id, user_id, first_name, middle_name, last_name, birth_date, gender_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, u.ID, d.FirstName, d.MiddleName, d.LastName, d.BirthDate, d.GenderCode)
	if err != nil {
		return err
	}

	for _, role := range u.Roles {
		if _, err := c.Exec(ctx, `
			INSERT INTO user_role (user_id, role_id) VALUES ($1, $2)`,
			u.ID, role.ID); err != nil {
			return err
		}
	}

	for _, ident := range d.Identifiers {
		if _, err := c.Exec(ctx, `
			INSERT INTO demographics_identifier (demographics_id, identifier_id)
			VALUES ($1, $2)`,
			d.ID, ident.ID); err != nil {
			return err
		}
	}

	for _, t := range d.Telecoms {
		t.DemographicsID = d.ID
		if err := r.UpsertTelecom(ctx, t); err != nil {
			return err
		}
	}
	for _, a := range d.Addresses {
		a.DemographicsID = d.ID
		if err := r.UpsertAddress(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	c := r.conn(ctx)

	tag, err := c.Exec(ctx, `
		UPDATE users SET user_auth_id = $2, locale = $3, updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.UserAuthID, u.Locale)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	d := &u.Demographics
	_, err = c.Exec(ctx, `
		UPDATE demographics SET first_name = $2, middle_name = $3, last_name = $4,
			birth_date = $5, gender_code = $6
		WHERE id = $1`,
		d.ID, d.FirstName, d.MiddleName, d.LastName, d.BirthDate, d.GenderCode)
	if err != nil {
		return err
	}

	if _, err := c.Exec(ctx, `DELETE FROM user_role WHERE user_id = $1`, u.ID); err != nil {
		return err
	}
	for _, role := range u.Roles {
		if _, err := c.Exec(ctx, `
			INSERT INTO user_role (user_id, role_id) VALUES ($1, $2)`,
			u.ID, role.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadAggregate(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repoPG) GetByAuthID(ctx context.Context, authID string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE user_auth_id = $1 AND NOT disabled`, authID))
	if err != nil {
		return nil, err
	}
	if err := r.loadAggregate(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return r.page(ctx, `
		SELECT `+userCols+` FROM users
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		`SELECT COUNT(*) FROM users`,
		[]interface{}{limit, offset}, nil)
}

func (r *repoPG) Search(ctx context.Context, term string, limit, offset int) ([]*User, int, error) {
	pattern := "%" + term + "%"
	return r.page(ctx, `
		SELECT u.id, u.user_auth_id, u.disabled, u.locale, u.created_at, u.updated_at
		FROM users u
		JOIN demographics d ON d.user_id = u.id
		WHERE d.first_name ILIKE $1 OR d.last_name ILIKE $1
		ORDER BY u.created_at DESC LIMIT $2 OFFSET $3`,
		`SELECT COUNT(*) FROM users u
		JOIN demographics d ON d.user_id = u.id
		WHERE d.first_name ILIKE $1 OR d.last_name ILIKE $1`,
		[]interface{}{pattern, limit, offset}, []interface{}{pattern})
}

func (r *repoPG) page(ctx context.Context, listSQL, countSQL string, listArgs, countArgs []interface{}) ([]*User, int, error) {
	c := r.conn(ctx)

	var total int
	if err := c.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := c.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.UserAuthID, &u.Disabled, &u.Locale, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, u := range users {
		if err := r.loadAggregate(ctx, u); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

func (r *repoPG) loadAggregate(ctx context.Context, u *User) error {
	c := r.conn(ctx)

	roleRows, err := c.Query(ctx, `
		SELECT r.id, r.code, r.name
		FROM role r JOIN user_role ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 ORDER BY r.code`, u.ID)
	if err != nil {
		return err
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var role Role
		if err := roleRows.Scan(&role.ID, &role.Code, &role.Name); err != nil {
			return err
		}
		u.Roles = append(u.Roles, role)
	}
	if err := roleRows.Err(); err != nil {
		return err
	}

	d := &u.Demographics
	err = c.QueryRow(ctx, `
		SELECT id, first_name, middle_name, last_name, birth_date, gender_code
		FROM demographics WHERE user_id = $1`, u.ID).
		Scan(&d.ID, &d.FirstName, &d.MiddleName, &d.LastName, &d.BirthDate, &d.GenderCode)
	if err != nil {
		return err
	}

	identRows, err := c.Query(ctx, `
		SELECT i.id, i.value, i.system_id, s.code, s.system_generated, i.created_at
		FROM identifier i
		JOIN identifier_system s ON s.id = i.system_id
		JOIN demographics_identifier di ON di.identifier_id = i.id
		WHERE di.demographics_id = $1 ORDER BY i.created_at`, d.ID)
	if err != nil {
		return err
	}
	defer identRows.Close()
	for identRows.Next() {
		var ident identifier.Identifier
		if err := identRows.Scan(&ident.ID, &ident.Value, &ident.SystemID, &ident.SystemCode,
			&ident.SystemGenerated, &ident.CreatedAt); err != nil {
			return err
		}
		d.Identifiers = append(d.Identifiers, &ident)
	}
	if err := identRows.Err(); err != nil {
		return err
	}

	telecomRows, err := c.Query(ctx, `
		SELECT id, demographics_id, system, use, value
		FROM telecom WHERE demographics_id = $1 ORDER BY system, use`, d.ID)
	if err != nil {
		return err
	}
	defer telecomRows.Close()
	for telecomRows.Next() {
		var t Telecom
		if err := telecomRows.Scan(&t.ID, &t.DemographicsID, &t.System, &t.Use, &t.Value); err != nil {
			return err
		}
		d.Telecoms = append(d.Telecoms, &t)
	}
	if err := telecomRows.Err(); err != nil {
		return err
	}

	addressRows, err := c.Query(ctx, `
		SELECT id, demographics_id, use, line1, line2, city, state_code, country_code, postal_code
		FROM address WHERE demographics_id = $1 ORDER BY use`, d.ID)
	if err != nil {
		return err
	}
	defer addressRows.Close()
	for addressRows.Next() {
		var a Address
		if err := addressRows.Scan(&a.ID, &a.DemographicsID, &a.Use, &a.Line1, &a.Line2,
			&a.City, &a.StateCode, &a.CountryCode, &a.PostalCode); err != nil {
			return err
		}
		d.Addresses = append(d.Addresses, &a)
	}
	if err := addressRows.Err(); err != nil {
		return err
	}

	var patientID uuid.UUID
	err = c.QueryRow(ctx, `SELECT id FROM patient WHERE demographics_id = $1`, d.ID).Scan(&patientID)
	if err == nil {
		d.PatientID = &patientID
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}

func (r *repoPG) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET disabled = $2, updated_at = NOW() WHERE id = $1`, id, disabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *repoPG) ResolveRoles(ctx context.Context, codes []string) ([]Role, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, code, name FROM role WHERE code = ANY($1) ORDER BY code`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *repoPG) SyncIdentifiers(ctx context.Context, demographicsID uuid.UUID, identifierIDs []uuid.UUID) error {
	c := r.conn(ctx)
	if _, err := c.Exec(ctx, `
		DELETE FROM demographics_identifier WHERE demographics_id = $1`, demographicsID); err != nil {
		return err
	}
	for _, id := range identifierIDs {
		if _, err := c.Exec(ctx, `
			INSERT INTO demographics_identifier (demographics_id, identifier_id)
			VALUES ($1, $2)`, demographicsID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) UpsertTelecom(ctx context.Context, t *Telecom) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO telecom (id, demographics_id, system, use, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (demographics_id, system, use)
		DO UPDATE SET value = EXCLUDED.value
		RETURNING id`,
		t.ID, t.DemographicsID, t.System, t.Use, t.Value).
		Scan(&t.ID)
}

func (r *repoPG) UpsertAddress(ctx context.Context, a *Address) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO address (id, demographics_id, use, line1, line2, city, state_code, country_code, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (demographics_id, use)
		DO UPDATE SET line1 = EXCLUDED.line1, line2 = EXCLUDED.line2, city = EXCLUDED.city,
			state_code = EXCLUDED.state_code, country_code = EXCLUDED.country_code,
			postal_code = EXCLUDED.postal_code
		RETURNING id`,
		a.ID, a.DemographicsID, a.Use, a.Line1, a.Line2, a.City, a.StateCode, a.CountryCode, a.PostalCode).
		Scan(&a.ID)
}
