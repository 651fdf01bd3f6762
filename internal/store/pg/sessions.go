package pg

import (
	"context"
	"database/sql"
	"errors"

	"inmapper.dev/authgate/internal/auth"
)

type sessions struct {
	db *sql.DB
}

const sessionColumns = `id, user_id, token, expires_at, is_revoked, request_ip, request_agent, callback_url, created_at`

func (s sessions) Create(ctx context.Context, sess *auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions(`+sessionColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sess.ID, sess.UserID, sess.Token, sess.ExpiresAt, sess.IsRevoked, sess.RequestIP, sess.RequestAgent, sess.CallbackURL, sess.CreatedAt)
	if isUniqueViolation(err) {
		return auth.ErrConflict
	}
	return err
}

func (s sessions) FindByToken(ctx context.Context, token string) (*auth.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+sessionColumns+` from sessions where token=$1
	`, token)

	var sess auth.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.ExpiresAt, &sess.IsRevoked, &sess.RequestIP, &sess.RequestAgent, &sess.CallbackURL, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s sessions) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update sessions set is_revoked=true where id=$1
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s sessions) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update sessions set is_revoked=true
		where user_id=$1 and is_revoked=false
	`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
