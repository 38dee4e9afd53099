package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another User (not excludedID) holds them.
		CheckUniqueness(ctx context.Context, username, email, excludedID string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	// Service is the account directory used by the application lifecycle and by the auth endpoints.
	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		CreateAccount(ctx context.Context, na NewAccount, exec ...core.DBExecutor) (User, error)
		UpdateAccountContact(ctx context.Context, id string, cu ContactUpdate, exec ...core.DBExecutor) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		UsernameExists(ctx context.Context, uname string, exec ...core.DBExecutor) (bool, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		ResetPassword(ctx context.Context, uname, pwd string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email, excludedID string, exec ...core.DBExecutor) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedID, exec...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create adds a staff User. nu must be validated beforehand.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, ""); err != nil {
		return User{}, err
	}
	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// CreateAccount provisions a member account. It fails with ErrUsernameExists or ErrEmailExists on conflicts.
func (svc *service) CreateAccount(ctx context.Context, na NewAccount, exec ...core.DBExecutor) (User, error) {
	if len(na.PasswordHash) == 0 {
		return User{}, errors.New("missing password hash")
	}
	uname := core.CleanString(na.Username, true /* lower */)
	email := core.CleanString(na.Email, true /* lower */)
	if err := svc.repo.CheckUniqueness(ctx, uname, email, "", exec...); err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		Name:         core.CleanString(na.Name),
		Username:     uname,
		Email:        email,
		Contact:      core.CleanString(na.Contact),
		Country:      core.CleanString(na.Country),
		Roles:        []string{RoleMember},
		PasswordHash: na.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	usr.SetActive(true)
	return svc.repo.CreateUser(ctx, usr, exec...)
}

// UpdateAccountContact refreshes the contact details of an existing account and re-activates it.
func (svc *service) UpdateAccountContact(ctx context.Context, id string, cu ContactUpdate, exec ...core.DBExecutor) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id}, exec...)
	if err != nil {
		return User{}, err
	}

	email := core.CleanString(cu.Email, true /* lower */)
	if email != "" && email != usr.Email {
		if err = svc.repo.CheckUniqueness(ctx, "", email, usr.ID, exec...); err != nil {
			return User{}, err
		}
		usr.Email = email
	}
	if name := core.CleanString(cu.Name); name != "" {
		usr.Name = name
	}
	if contact := core.CleanString(cu.Contact); contact != "" {
		usr.Contact = contact
	}
	if country := core.CleanString(cu.Country); country != "" {
		usr.Country = country
	}
	usr.SetActive(true)
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr, exec...)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) UsernameExists(ctx context.Context, uname string, exec ...core.DBExecutor) (bool, error) {
	_, err := svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)}, exec...)
	if err == nil {
		return true, nil
	}
	if errors.Cause(err) == ErrNotFound {
		return false, nil
	}
	return false, err
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := NowFunc().UTC()
	usr.LastLogin = &now
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ResetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
