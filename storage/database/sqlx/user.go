package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/user"
)

const userColumns = `id, name, username, email, contact, country, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	Contact      string         `db:"contact"`
	Country      string         `db:"country"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Contact:      usr.Contact,
		Country:      usr.Country,
		IsActive:     usr.Active(),
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    null.TimeFromPtr(usr.LastLogin),
	}
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Contact:      r.Contact,
		Country:      r.Country,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Ptr(),
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	usr.SetActive(r.IsActive)
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func userUniqueErr(err error) error {
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "users_username_key":
			return user.ErrUsernameExists
		case "users_email_key":
			return user.ErrEmailExists
		}
	}
	return err
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email, excludedID string, exec ...core.DBExecutor) error {
	var taken struct {
		Username bool `db:"username_taken"`
		Email    bool `db:"email_taken"`
	}
	query := `SELECT COALESCE(bool_or(username = $1), false) AS username_taken, COALESCE(bool_or(email = $2), false) AS email_taken
		FROM users WHERE (username = $1 OR email = $2) AND id::text <> $3`
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &taken, query, username, email, excludedID); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if username != "" && taken.Username {
		return user.ErrUsernameExists
	}
	if email != "" && taken.Email {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	row := newUserRow(usr)
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + userColumns
	var created userRow
	err := sqlx.GetContext(
		ctx, getExec(repo.db, exec), &created, query,
		row.ID, row.Name, row.Username, row.Email, row.Contact, row.Country,
		row.IsActive, row.Roles, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		if uerr := userUniqueErr(err); uerr != err {
			return user.User{}, uerr
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return created.toUser(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	wb := new(whereBuilder)
	switch {
	case filter.ID != "":
		if !core.IsValidID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		wb.add("id = ?", filter.ID)
	case filter.Username != "":
		wb.add("username = ?", filter.Username)
	case filter.UsernameOrEmail != "":
		wb.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	query := `SELECT ` + userColumns + ` FROM users` + wb.String() + ` LIMIT 1`
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, query, wb.args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := newUserRow(usr)
	query := `UPDATE users SET name = $2, username = $3, email = $4, contact = $5, country = $6, is_active = $7,
		roles = $8, password_hash = $9, updated_at = $10, last_login = $11
		WHERE id = $1 RETURNING ` + userColumns
	var updated userRow
	err := sqlx.GetContext(
		ctx, getExec(repo.db, exec), &updated, query,
		row.ID, row.Name, row.Username, row.Email, row.Contact, row.Country,
		row.IsActive, row.Roles, row.PasswordHash, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		if uerr := userUniqueErr(err); uerr != err {
			return user.User{}, uerr
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return updated.toUser(), nil
}
