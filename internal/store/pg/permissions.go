package pg

import (
	"context"
	"database/sql"
	"errors"

	"inmapper.dev/authgate/internal/auth"
	"inmapper.dev/authgate/internal/ids"
)

type permissions struct {
	db *sql.DB
}

const permColumns = `id, user_id, resource, can_access, granted_by, expires_at, created_at`

func scanPermission(row rowScanner) (*auth.Permission, error) {
	var p auth.Permission
	var grantedBy sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(&p.ID, &p.UserID, &p.Resource, &p.CanAccess, &grantedBy, &expiresAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if grantedBy.Valid {
		p.GrantedBy = grantedBy.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		p.ExpiresAt = &t
	}
	return &p, nil
}

func (s permissions) Upsert(ctx context.Context, p *auth.Permission) error {
	_, err := s.db.ExecContext(ctx, `
		insert into permissions(id, user_id, resource, can_access, granted_by, expires_at, created_at)
		values ($1,$2,$3,$4,nullif($5,''),$6,$7)
		on conflict (user_id, resource) do update
		set can_access = excluded.can_access,
		    granted_by = excluded.granted_by,
		    expires_at = excluded.expires_at
	`, p.ID, p.UserID, p.Resource, p.CanAccess, p.GrantedBy, p.ExpiresAt, p.CreatedAt)
	return err
}

func (s permissions) UpsertAccess(ctx context.Context, userID, resource string, canAccess bool, grantedBy string) (*auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into permissions(id, user_id, resource, can_access, granted_by, created_at)
		values ($1,$2,$3,$4,nullif($5,''),now())
		on conflict (user_id, resource) do update
		set can_access = excluded.can_access,
		    granted_by = excluded.granted_by
		returning `+permColumns+`
	`, ids.New(), userID, resource, canAccess, grantedBy)
	return scanPermission(row)
}

func (s permissions) Find(ctx context.Context, userID, resource string) (*auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+permColumns+` from permissions where user_id=$1 and resource=$2
	`, userID, resource)
	p, err := scanPermission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return p, err
}

func (s permissions) ListForUser(ctx context.Context, userID string) ([]*auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+permColumns+` from permissions where user_id=$1 order by resource
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*auth.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s permissions) SetAccess(ctx context.Context, userID, resource string, canAccess bool) error {
	res, err := s.db.ExecContext(ctx, `
		update permissions set can_access=$3 where user_id=$1 and resource=$2
	`, userID, resource, canAccess)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s permissions) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from permissions where id=$1
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
