package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"inmapper.dev/authgate/internal/auth"
)

type users struct {
	db *sql.DB
}

const userColumns = `id, email, name, is_active, is_verified, is_admin, last_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var u auth.User
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.IsVerified, &u.IsAdmin, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func (s users) Create(ctx context.Context, u *auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, email, name, is_active, is_verified, is_admin, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,now(),now())
	`, u.ID, u.Email, u.Name, u.IsActive, u.IsVerified, u.IsAdmin)
	if isUniqueViolation(err) {
		return auth.ErrConflict
	}
	return err
}

func (s users) Find(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (s users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (s users) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s users) Update(ctx context.Context, id string, upd auth.UserUpdate) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		update users set
			is_admin = coalesce($2, is_admin),
			is_active = coalesce($3, is_active),
			updated_at = now()
		where id=$1
		returning `+userColumns+`
	`, id, upd.IsAdmin, upd.IsActive)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (s users) SetVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set is_verified=true, updated_at=now() where id=$1
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s users) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update users set last_login_at=$2, updated_at=now() where id=$1
	`, id, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
