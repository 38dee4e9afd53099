package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/broadcast"
)

const broadcastColumns = `kind, title, description, topic, url, thumbnail_url, is_active, started_at, ended_at, updated_at`

type broadcastRow struct {
	Kind         string    `db:"kind"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Topic        string    `db:"topic"`
	URL          string    `db:"url"`
	ThumbnailURL string    `db:"thumbnail_url"`
	IsActive     bool      `db:"is_active"`
	StartedAt    null.Time `db:"started_at"`
	EndedAt      null.Time `db:"ended_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func (r broadcastRow) toBroadcast() broadcast.Broadcast {
	return broadcast.Broadcast{
		Kind:         broadcast.Kind(r.Kind),
		Title:        r.Title,
		Description:  r.Description,
		Topic:        r.Topic,
		URL:          r.URL,
		ThumbnailURL: r.ThumbnailURL,
		IsActive:     r.IsActive,
		StartedAt:    utcPtr(r.StartedAt),
		EndedAt:      utcPtr(r.EndedAt),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type broadcastRepository struct {
	db *sqlx.DB
}

var _ broadcast.Repository = (*broadcastRepository)(nil)

func NewBroadcastRepository(db *sqlx.DB) *broadcastRepository {
	return &broadcastRepository{db: db}
}

// transition runs an UPDATE ... RETURNING, a missing row meaning the guard did not match.
func (repo *broadcastRepository) transition(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) (broadcast.Broadcast, error) {
	var row broadcastRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return broadcast.Broadcast{}, broadcast.ErrNotTransitioned
		}
		return broadcast.Broadcast{}, errors.Wrap(err, "updating broadcast")
	}
	return row.toBroadcast(), nil
}

func (repo *broadcastRepository) GetOrCreate(ctx context.Context, b broadcast.Broadcast, exec ...core.DBExecutor) (broadcast.Broadcast, error) {
	ext := getExec(repo.db, exec)
	_, err := ext.ExecContext(
		ctx,
		`INSERT INTO broadcasts (kind, title, topic, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (kind) DO NOTHING`,
		string(b.Kind), b.Title, b.Topic, b.UpdatedAt,
	)
	if err != nil {
		return broadcast.Broadcast{}, errors.Wrap(err, "inserting broadcast")
	}
	var row broadcastRow
	if err = sqlx.GetContext(ctx, ext, &row, `SELECT `+broadcastColumns+` FROM broadcasts WHERE kind = $1`, string(b.Kind)); err != nil {
		return broadcast.Broadcast{}, errors.Wrap(err, "selecting broadcast")
	}
	return row.toBroadcast(), nil
}

func (repo *broadcastRepository) Activate(ctx context.Context, b broadcast.Broadcast, exec ...core.DBExecutor) (broadcast.Broadcast, error) {
	query := `UPDATE broadcasts SET title = $2, description = $3, topic = $4, url = $5, thumbnail_url = $6,
		is_active = TRUE, started_at = $7, ended_at = NULL, updated_at = $8
		WHERE kind = $1 AND NOT is_active RETURNING ` + broadcastColumns
	return repo.transition(
		ctx, exec, query,
		string(b.Kind), b.Title, b.Description, b.Topic, b.URL, b.ThumbnailURL, null.TimeFromPtr(b.StartedAt), b.UpdatedAt,
	)
}

func (repo *broadcastRepository) Deactivate(ctx context.Context, kind broadcast.Kind, at time.Time, exec ...core.DBExecutor) (broadcast.Broadcast, error) {
	query := `UPDATE broadcasts SET is_active = FALSE, ended_at = $2, updated_at = $2
		WHERE kind = $1 AND is_active RETURNING ` + broadcastColumns
	return repo.transition(ctx, exec, query, string(kind), at)
}

func (repo *broadcastRepository) UpdateTopic(ctx context.Context, kind broadcast.Kind, topic string, at time.Time, exec ...core.DBExecutor) (broadcast.Broadcast, error) {
	query := `UPDATE broadcasts SET topic = $2, updated_at = $3 WHERE kind = $1 RETURNING ` + broadcastColumns
	b, err := repo.transition(ctx, exec, query, string(kind), topic, at)
	if errors.Cause(err) == broadcast.ErrNotTransitioned {
		return broadcast.Broadcast{}, broadcast.ErrUnknownKind
	}
	return b, err
}
