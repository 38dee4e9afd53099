package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/application"
)

const applicationColumns = `id, name, email, phone, country, motivation, expectations, track, username, password_hash,
	status, reviewed_by, reviewed_at, account_id, reopened_from, created_at, updated_at`

var applicationOrderings = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"email":      true,
	"username":   true,
	"status":     true,
	"track":      true,
}

type applicationRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	Phone        string      `db:"phone"`
	Country      string      `db:"country"`
	Motivation   string      `db:"motivation"`
	Expectations string      `db:"expectations"`
	Track        string      `db:"track"`
	Username     string      `db:"username"`
	PasswordHash []byte      `db:"password_hash"`
	Status       string      `db:"status"`
	ReviewedBy   null.String `db:"reviewed_by"`
	ReviewedAt   null.Time   `db:"reviewed_at"`
	AccountID    null.String `db:"account_id"`
	ReopenedFrom null.String `db:"reopened_from"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (r applicationRow) toApplication() application.Application {
	return application.Application{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Country:      r.Country,
		Motivation:   r.Motivation,
		Expectations: r.Expectations,
		Track:        application.Track(r.Track),
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Status:       application.Status(r.Status),
		ReviewedBy:   r.ReviewedBy.Ptr(),
		ReviewedAt:   utcPtr(r.ReviewedAt),
		AccountID:    r.AccountID.Ptr(),
		ReopenedFrom: r.ReopenedFrom.Ptr(),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type applicationRepository struct {
	db *sqlx.DB
}

var _ application.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application, exec ...core.DBExecutor) (application.Application, error) {
	if app.ID == "" {
		app.ID = core.NewID()
	}
	query := `INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + applicationColumns
	var row applicationRow
	err := sqlx.GetContext(
		ctx, getExec(repo.db, exec), &row, query,
		app.ID, app.Name, app.Email, app.Phone, app.Country, app.Motivation, app.Expectations,
		string(app.Track), app.Username, app.PasswordHash, string(app.Status),
		null.StringFromPtr(app.ReviewedBy), null.TimeFromPtr(app.ReviewedAt),
		null.StringFromPtr(app.AccountID), null.StringFromPtr(app.ReopenedFrom),
		app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			switch constraint {
			case "applications_email_track_active_idx":
				return application.Application{}, application.ErrActiveDuplicate
			case "applications_reopened_from_key":
				return application.Application{}, application.ErrAlreadyReopened
			case "applications_username_root_idx":
				return application.Application{}, application.ErrUsernameTaken
			}
		}
		return application.Application{}, errors.Wrap(err, "inserting application")
	}
	return row.toApplication(), nil
}

func (repo *applicationRepository) getOne(ctx context.Context, query string, exec []core.DBExecutor, args ...interface{}) (application.Application, error) {
	var row applicationRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return application.Application{}, application.ErrNotFound
		}
		return application.Application{}, errors.Wrap(err, "selecting application")
	}
	return row.toApplication(), nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id string, exec ...core.DBExecutor) (application.Application, error) {
	if !core.IsValidID(id) {
		return application.Application{}, application.ErrNotFound
	}
	return repo.getOne(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, exec, id)
}

func (repo *applicationRepository) GetApplicationForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (application.Application, error) {
	if !core.IsValidID(id) {
		return application.Application{}, application.ErrNotFound
	}
	return repo.getOne(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, exec, id)
}

func (repo *applicationRepository) GetLatestByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (application.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE username = $1 ORDER BY created_at DESC LIMIT 1`
	return repo.getOne(ctx, query, exec, username)
}

func (repo *applicationRepository) QueryApplications(
	ctx context.Context,
	filter application.QueryFilter,
	orderings []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]application.Application, error) {
	wb := new(whereBuilder)
	if filter.Search != "" {
		wb.add("(name ILIKE '%' || ? || '%' OR email ILIKE '%' || ? || '%' OR username ILIKE '%' || ? || '%')",
			filter.Search, filter.Search, filter.Search)
	}
	if filter.Status != "" {
		wb.add("status = ?", string(filter.Status))
	}
	if filter.Track != "" {
		wb.add("track = ?", string(filter.Track))
	}

	query := `SELECT ` + applicationColumns + ` FROM applications` + wb.String() +
		orderBy(orderings, applicationOrderings, "created_at DESC")
	var rows []applicationRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, query, wb.args...); err != nil {
		return nil, errors.Wrap(err, "selecting applications")
	}
	apps := make([]application.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toApplication())
	}
	return apps, nil
}

func (repo *applicationRepository) exists(ctx context.Context, exec []core.DBExecutor, cond string, args ...interface{}) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM applications WHERE ` + cond + `)`
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &exists, query, args...); err != nil {
		return false, errors.Wrap(err, "checking applications")
	}
	return exists, nil
}

func (repo *applicationRepository) UsernameExists(ctx context.Context, username string, exec ...core.DBExecutor) (bool, error) {
	return repo.exists(ctx, exec, "username = $1", username)
}

func (repo *applicationRepository) ActiveExists(ctx context.Context, email string, track application.Track, excludedID string, exec ...core.DBExecutor) (bool, error) {
	return repo.exists(
		ctx, exec,
		"email = $1 AND track = $2 AND status IN ('pending', 'approved') AND id::text <> $3",
		email, string(track), excludedID,
	)
}

func (repo *applicationRepository) ReopenedExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	if !core.IsValidID(id) {
		return false, nil
	}
	return repo.exists(ctx, exec, "reopened_from = $1", id)
}

func (repo *applicationRepository) UpdateReview(
	ctx context.Context,
	app application.Application,
	fromStatus application.Status,
	exec ...core.DBExecutor,
) (application.Application, error) {
	query := `UPDATE applications SET status = $3, reviewed_by = $4, reviewed_at = $5, account_id = $6, updated_at = $7
		WHERE id = $1 AND status = $2 RETURNING ` + applicationColumns
	var row applicationRow
	err := sqlx.GetContext(
		ctx, getExec(repo.db, exec), &row, query,
		app.ID, string(fromStatus), string(app.Status),
		null.StringFromPtr(app.ReviewedBy), null.TimeFromPtr(app.ReviewedAt),
		null.StringFromPtr(app.AccountID), app.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return application.Application{}, application.ErrStatusChanged
		}
		if constraint, ok := uniqueConstraint(err); ok && constraint == "applications_email_track_active_idx" {
			return application.Application{}, application.ErrActiveConflict
		}
		return application.Application{}, errors.Wrap(err, "updating application review")
	}
	return row.toApplication(), nil
}
