package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/notification"
)

type deviceTokenRow struct {
	ID        string    `db:"id"`
	Token     string    `db:"token"`
	CreatedAt time.Time `db:"created_at"`
	LastUsed  null.Time `db:"last_used"`
	Created   bool      `db:"created"`
}

type deviceTokenRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*deviceTokenRepository)(nil)

func NewDeviceTokenRepository(db *sqlx.DB) *deviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

func (repo *deviceTokenRepository) UpsertToken(ctx context.Context, dt notification.DeviceToken, exec ...core.DBExecutor) (notification.DeviceToken, bool, error) {
	if dt.ID == "" {
		dt.ID = core.NewID()
	}
	// xmax is 0 only for freshly inserted tuples
	query := `INSERT INTO device_tokens (id, token, created_at, last_used) VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET last_used = EXCLUDED.last_used
		RETURNING id, token, created_at, last_used, (xmax = 0) AS created`
	var row deviceTokenRow
	err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, query, dt.ID, dt.Token, dt.CreatedAt, null.TimeFromPtr(dt.LastUsed))
	if err != nil {
		return notification.DeviceToken{}, false, errors.Wrap(err, "upserting device token")
	}
	saved := notification.DeviceToken{
		ID:        row.ID,
		Token:     row.Token,
		CreatedAt: row.CreatedAt.UTC(),
		LastUsed:  utcPtr(row.LastUsed),
	}
	return saved, row.Created, nil
}

func (repo *deviceTokenRepository) ListTokens(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	tokens := make([]string, 0)
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &tokens, `SELECT token FROM device_tokens ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "selecting device tokens")
	}
	return tokens, nil
}

func (repo *deviceTokenRepository) TouchTokens(ctx context.Context, tokens []string, at time.Time, exec ...core.DBExecutor) error {
	_, err := getExec(repo.db, exec).ExecContext(ctx, `UPDATE device_tokens SET last_used = $1 WHERE token = ANY($2)`, at, pq.Array(tokens))
	return errors.Wrap(err, "touching device tokens")
}

func (repo *deviceTokenRepository) DeleteTokens(ctx context.Context, tokens []string, exec ...core.DBExecutor) error {
	_, err := getExec(repo.db, exec).ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ANY($1)`, pq.Array(tokens))
	return errors.Wrap(err, "deleting device tokens")
}

func (repo *deviceTokenRepository) CountTokens(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &count, `SELECT COUNT(*) FROM device_tokens`); err != nil {
		return 0, errors.Wrap(err, "counting device tokens")
	}
	return count, nil
}
