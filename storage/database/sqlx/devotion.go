package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/devotion"
)

const devotionColumns = `id, title, content_type, description, text_content, youtube_url, devotion_date, created_at`

type devotionRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	ContentType  string    `db:"content_type"`
	Description  string    `db:"description"`
	TextContent  string    `db:"text_content"`
	YouTubeURL   string    `db:"youtube_url"`
	DevotionDate time.Time `db:"devotion_date"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r devotionRow) toDevotion() devotion.Devotion {
	return devotion.Devotion{
		ID:           r.ID,
		Title:        r.Title,
		ContentType:  devotion.ContentType(r.ContentType),
		Description:  r.Description,
		TextContent:  r.TextContent,
		YouTubeURL:   r.YouTubeURL,
		DevotionDate: devotion.NewDate(r.DevotionDate),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type devotionRepository struct {
	db *sqlx.DB
}

var _ devotion.Repository = (*devotionRepository)(nil)

func NewDevotionRepository(db *sqlx.DB) *devotionRepository {
	return &devotionRepository{db: db}
}

func (repo *devotionRepository) CreateDevotion(ctx context.Context, dev devotion.Devotion, exec ...core.DBExecutor) (devotion.Devotion, error) {
	if dev.ID == "" {
		dev.ID = core.NewID()
	}
	query := `INSERT INTO devotions (` + devotionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING ` + devotionColumns
	var row devotionRow
	err := sqlx.GetContext(
		ctx, getExec(repo.db, exec), &row, query,
		dev.ID, dev.Title, string(dev.ContentType), dev.Description, dev.TextContent, dev.YouTubeURL,
		dev.DevotionDate.Time, dev.CreatedAt,
	)
	if err != nil {
		return devotion.Devotion{}, errors.Wrap(err, "inserting devotion")
	}
	return row.toDevotion(), nil
}

func (repo *devotionRepository) GetDevotion(ctx context.Context, id string, exec ...core.DBExecutor) (devotion.Devotion, error) {
	if !core.IsValidID(id) {
		return devotion.Devotion{}, devotion.ErrNotFound
	}
	var row devotionRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, `SELECT `+devotionColumns+` FROM devotions WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return devotion.Devotion{}, devotion.ErrNotFound
		}
		return devotion.Devotion{}, errors.Wrap(err, "selecting devotion")
	}
	return row.toDevotion(), nil
}

func (repo *devotionRepository) QueryDevotions(ctx context.Context, limit int, exec ...core.DBExecutor) ([]devotion.Devotion, error) {
	query := `SELECT ` + devotionColumns + ` FROM devotions ORDER BY devotion_date DESC, created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	var rows []devotionRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting devotions")
	}
	devs := make([]devotion.Devotion, 0, len(rows))
	for _, row := range rows {
		devs = append(devs, row.toDevotion())
	}
	return devs, nil
}
