package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"inmapper.dev/authgate/internal/auth"
)

type codes struct {
	db *sql.DB
}

const codeColumns = `id, user_id, code_hash, kind, expires_at, is_used, attempts, request_ip, request_agent, created_at`

func (s codes) Create(ctx context.Context, c *auth.OneTimeCode) error {
	_, err := s.db.ExecContext(ctx, `
		insert into one_time_codes(`+codeColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, c.ID, c.UserID, c.CodeHash, string(c.Kind), c.ExpiresAt, c.IsUsed, c.Attempts, c.RequestIP, c.RequestAgent, c.CreatedAt)
	return err
}

func (s codes) LatestUnused(ctx context.Context, userID string, kind auth.CodeKind) (*auth.OneTimeCode, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+codeColumns+`
		from one_time_codes
		where user_id=$1 and kind=$2 and is_used=false
		order by created_at desc
		limit 1
	`, userID, string(kind))

	var c auth.OneTimeCode
	var kindRaw string
	err := row.Scan(&c.ID, &c.UserID, &c.CodeHash, &kindRaw, &c.ExpiresAt, &c.IsUsed, &c.Attempts, &c.RequestIP, &c.RequestAgent, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Kind = auth.CodeKind(kindRaw)
	return &c, nil
}

func (s codes) MarkUsed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update one_time_codes set is_used=true where id=$1
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s codes) MarkAllUsed(ctx context.Context, userID string, kind auth.CodeKind) error {
	_, err := s.db.ExecContext(ctx, `
		update one_time_codes set is_used=true
		where user_id=$1 and kind=$2 and is_used=false
	`, userID, string(kind))
	return err
}

// IncrementAttempts bumps the counter atomically in the database so
// concurrent guesses cannot share one attempt.
func (s codes) IncrementAttempts(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update one_time_codes set attempts = attempts + 1 where id=$1
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s codes) DeleteStale(ctx context.Context, now, usedBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from one_time_codes
		where expires_at < $1 or (is_used=true and created_at < $2)
	`, now, usedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
