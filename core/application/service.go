package application

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound        = core.NewNotFoundError("application not found")
	ErrStatusChanged   = errors.New("application status changed")
	ErrUsernameTaken   = errors.New("this username is already taken")
	ErrActiveDuplicate = errors.New("an active application already exists for this email and track")

	ErrAlreadyApproved = core.NewConflictError("application is already approved")
	ErrAlreadyRejected = core.NewConflictError("application is already rejected")
	ErrApprovedFinal   = core.NewConflictError("an approved application cannot be rejected")
	ErrNotRejected     = core.NewConflictError("only rejected applications can be reopened")
	ErrAlreadyReopened = core.NewConflictError("application has already been reopened")
	ErrSuperseded      = core.NewConflictError("application has been reopened, review the new application instead")
	ErrActiveConflict  = core.NewConflictError("another active application exists for this email and track")
	ErrConcurrentEdit  = core.NewConflictError("application was reviewed concurrently")

	// an account (e.g. the one of an approved application on another track) already holds the email
	ErrAccountEmailTaken = core.NewConflictError("an account with this email already exists")

	ErrInvalidCredentials = core.NewAuthFailure(core.AuthInvalidCredentials, "invalid credentials")
	ErrPendingReview      = core.NewAuthFailure(core.AuthPendingReview, "your application is still pending review")
	ErrRejected           = core.NewAuthFailure(core.AuthRejected, "your application has been rejected")
	ErrAccountInactive    = core.NewAuthFailure(core.AuthAccountInactive, "account deactivated")
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application, exec ...core.DBExecutor) (Application, error)
		GetApplication(ctx context.Context, id string, exec ...core.DBExecutor) (Application, error)
		// GetApplicationForUpdate locks the application until the end of the unit of work.
		GetApplicationForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (Application, error)
		// GetLatestByUsername returns the most recently created application of username.
		GetLatestByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (Application, error)
		QueryApplications(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]Application, error)
		UsernameExists(ctx context.Context, username string, exec ...core.DBExecutor) (bool, error)
		// ActiveExists reports whether a pending or approved application, other than excludedID, exists for (email, track).
		ActiveExists(ctx context.Context, email string, track Track, excludedID string, exec ...core.DBExecutor) (bool, error)
		// ReopenedExists reports whether an application was cloned out of id.
		ReopenedExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
		// UpdateReview saves the status, review & account fields of app, only if its stored status is still fromStatus.
		// ErrStatusChanged is returned otherwise.
		UpdateReview(ctx context.Context, app Application, fromStatus Status, exec ...core.DBExecutor) (Application, error)
	}

	Service interface {
		Submit(ctx context.Context, na NewApplication) (Application, error)
		Get(ctx context.Context, id string) (Application, error)
		Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Application, error)
		Approve(ctx context.Context, id, reviewer string) (Application, error)
		Reject(ctx context.Context, id, reviewer string) (Application, error)
		Reopen(ctx context.Context, id string) (Application, error)
		BulkApprove(ctx context.Context, ids []string, reviewer string) BulkResult
		BulkReject(ctx context.Context, ids []string, reviewer string) BulkResult
		Login(ctx context.Context, username, password string) (LoginResult, error)
	}

	service struct {
		repo            Repository
		usrSvc          user.Service
		tx              core.Transactor
		mailSvc         core.EmailService
		logger          core.Logger
		frontendBaseURL string
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	usrSvc user.Service,
	tx core.Transactor,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:            repo,
		usrSvc:          usrSvc,
		tx:              tx,
		mailSvc:         mailSvc,
		logger:          logger,
		frontendBaseURL: conf.FrontendBaseURL,
	}
}

// Submit stores a new pending application. na must be validated beforehand.
func (svc *service) Submit(ctx context.Context, na NewApplication) (Application, error) {
	na.Clean()

	taken, err := svc.usernameTaken(ctx, na.Username)
	if err != nil {
		return Application{}, err
	}
	if taken {
		return Application{}, usernameTakenError()
	}
	if err = svc.checkActiveDuplicate(ctx, na.Email, na.Track, ""); err != nil {
		return Application{}, err
	}

	now := NowFunc().UTC()
	app := Application{
		Name:         na.Name,
		Email:        na.Email,
		Phone:        na.Phone,
		Country:      na.Country,
		Motivation:   na.Motivation,
		Expectations: na.Expectations,
		Track:        na.Track,
		Username:     na.Username,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = app.SetPassword(na.Password); err != nil {
		return Application{}, errors.Wrap(err, "hashing password")
	}

	app, err = svc.repo.CreateApplication(ctx, app)
	if err != nil {
		switch errors.Cause(err) {
		case ErrActiveDuplicate:
			return Application{}, duplicateError()
		case ErrUsernameTaken: // lost a race with a concurrent submit
			return Application{}, usernameTakenError()
		}
		return Application{}, errors.Wrap(err, "creating application")
	}
	return app, nil
}

// usernameTaken checks the username against both accounts and applications.
func (svc *service) usernameTaken(ctx context.Context, uname string, exec ...core.DBExecutor) (bool, error) {
	exists, err := svc.repo.UsernameExists(ctx, uname, exec...)
	if err != nil {
		return false, errors.Wrap(err, "checking application usernames")
	}
	if exists {
		return true, nil
	}
	exists, err = svc.usrSvc.UsernameExists(ctx, uname, exec...)
	if err != nil {
		return false, errors.Wrap(err, "checking account usernames")
	}
	return exists, nil
}

func (svc *service) checkActiveDuplicate(ctx context.Context, email string, track Track, excludedID string, exec ...core.DBExecutor) error {
	exists, err := svc.repo.ActiveExists(ctx, email, track, excludedID, exec...)
	if err != nil {
		return errors.Wrap(err, "checking active applications")
	}
	if exists {
		return duplicateError()
	}
	return nil
}

func usernameTakenError() error {
	return core.NewValidationError(
		ErrUsernameTaken,
		core.FieldError{Field: "username", Error: ErrUsernameTaken.Error()},
	)
}

func duplicateError() error {
	return core.NewValidationError(
		ErrActiveDuplicate,
		core.FieldError{Field: "email", Error: ErrActiveDuplicate.Error()},
		core.FieldError{Field: "track", Error: ErrActiveDuplicate.Error()},
	)
}

func (svc *service) Get(ctx context.Context, id string) (Application, error) {
	if !core.IsValidID(id) {
		return Application{}, ErrNotFound
	}
	return svc.repo.GetApplication(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Application, error) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryApplications(ctx, filter, orderings)
}

// Approve approves a pending (or previously rejected) application and provisions its account, as one unit.
// The account of a re-approved application is updated instead of created.
func (svc *service) Approve(ctx context.Context, id, reviewer string) (Application, error) {
	if !core.IsValidID(id) {
		return Application{}, ErrNotFound
	}

	var app Application
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		app, err = svc.repo.GetApplicationForUpdate(ctx, id, exec)
		if err != nil {
			return err
		}

		switch app.Status {
		case StatusApproved:
			return ErrAlreadyApproved
		case StatusRejected:
			reopened, err := svc.repo.ReopenedExists(ctx, app.ID, exec)
			if err != nil {
				return errors.Wrap(err, "checking reopened applications")
			}
			if reopened {
				return ErrSuperseded
			}
			active, err := svc.repo.ActiveExists(ctx, app.Email, app.Track, app.ID, exec)
			if err != nil {
				return errors.Wrap(err, "checking active applications")
			}
			if active {
				return ErrActiveConflict
			}
		}

		account, err := svc.provisionAccount(ctx, app, exec)
		if err != nil {
			if errors.Cause(err) == user.ErrEmailExists {
				return ErrAccountEmailTaken
			}
			return core.NewProvisioningError(err)
		}

		from := app.Status
		now := NowFunc().UTC()
		app.Status = StatusApproved
		app.ReviewedBy = core.StringPtr(reviewer)
		app.ReviewedAt = &now
		app.AccountID = &account.ID
		app.UpdatedAt = now
		return svc.updateReview(ctx, &app, from, exec)
	})
	if err != nil {
		return Application{}, err
	}

	svc.sendReviewEmail(app, "application_approved", "Your application has been approved")
	return app, nil
}

func (svc *service) provisionAccount(ctx context.Context, app Application, exec core.DBExecutor) (user.User, error) {
	if app.AccountID != nil {
		account, err := svc.usrSvc.UpdateAccountContact(ctx, *app.AccountID, app.contactUpdate(), exec)
		if err != nil {
			return user.User{}, errors.Wrap(err, "updating account")
		}
		return account, nil
	}
	account, err := svc.usrSvc.CreateAccount(ctx, app.newAccount(), exec)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating account")
	}
	return account, nil
}

func (svc *service) updateReview(ctx context.Context, app *Application, from Status, exec core.DBExecutor) error {
	updated, err := svc.repo.UpdateReview(ctx, *app, from, exec)
	if err != nil {
		if errors.Cause(err) == ErrStatusChanged {
			return ErrConcurrentEdit
		}
		return errors.Wrap(err, "updating application review")
	}
	*app = updated
	return nil
}

// Reject rejects a pending application. Any linked account is left untouched.
func (svc *service) Reject(ctx context.Context, id, reviewer string) (Application, error) {
	if !core.IsValidID(id) {
		return Application{}, ErrNotFound
	}

	var app Application
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		app, err = svc.repo.GetApplicationForUpdate(ctx, id, exec)
		if err != nil {
			return err
		}

		switch app.Status {
		case StatusRejected:
			return ErrAlreadyRejected
		case StatusApproved:
			return ErrApprovedFinal
		}

		now := NowFunc().UTC()
		app.Status = StatusRejected
		app.ReviewedBy = core.StringPtr(reviewer)
		app.ReviewedAt = &now
		app.UpdatedAt = now
		return svc.updateReview(ctx, &app, StatusPending, exec)
	})
	if err != nil {
		return Application{}, err
	}

	svc.sendReviewEmail(app, "application_rejected", "Update on your application")
	return app, nil
}

// Reopen clones a rejected application into a new pending one. The original is left as is.
// The password hash is copied over: the applicant keeps the password of the original application.
func (svc *service) Reopen(ctx context.Context, id string) (Application, error) {
	if !core.IsValidID(id) {
		return Application{}, ErrNotFound
	}

	var reopened Application
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetApplicationForUpdate(ctx, id, exec)
		if err != nil {
			return err
		}
		if orig.Status != StatusRejected {
			return ErrNotRejected
		}

		exists, err := svc.repo.ReopenedExists(ctx, orig.ID, exec)
		if err != nil {
			return errors.Wrap(err, "checking reopened applications")
		}
		if exists {
			return ErrAlreadyReopened
		}
		if err = svc.checkActiveDuplicate(ctx, orig.Email, orig.Track, "", exec); err != nil {
			return err
		}

		now := NowFunc().UTC()
		reopened = Application{
			Name:         orig.Name,
			Email:        orig.Email,
			Phone:        orig.Phone,
			Country:      orig.Country,
			Motivation:   orig.Motivation,
			Expectations: orig.Expectations,
			Track:        orig.Track,
			Username:     orig.Username,
			PasswordHash: orig.PasswordHash,
			Status:       StatusPending,
			AccountID:    orig.AccountID,
			ReopenedFrom: &orig.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		reopened, err = svc.repo.CreateApplication(ctx, reopened, exec)
		if err != nil {
			if errors.Cause(err) == ErrActiveDuplicate {
				return duplicateError()
			}
			return errors.Wrap(err, "creating reopened application")
		}
		return nil
	})
	if err != nil {
		return Application{}, err
	}
	return reopened, nil
}

// BulkApprove approves each application independently. Already approved applications are skipped.
func (svc *service) BulkApprove(ctx context.Context, ids []string, reviewer string) BulkResult {
	return svc.bulk(ctx, ids, ErrAlreadyApproved, func(id string) (Application, error) {
		return svc.Approve(ctx, id, reviewer)
	})
}

// BulkReject rejects each application independently. Already rejected applications are skipped.
func (svc *service) BulkReject(ctx context.Context, ids []string, reviewer string) BulkResult {
	return svc.bulk(ctx, ids, ErrAlreadyRejected, func(id string) (Application, error) {
		return svc.Reject(ctx, id, reviewer)
	})
}

func (svc *service) bulk(ctx context.Context, ids []string, skipErr error, action func(id string) (Application, error)) BulkResult {
	res := BulkResult{
		Updated: make([]string, 0, len(ids)),
		Skipped: make([]string, 0),
		Failed:  make([]BulkFailure, 0),
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Error: ctx.Err().Error()})
			continue
		}

		_, err := action(id)
		switch cause := errors.Cause(err); {
		case err == nil:
			res.Updated = append(res.Updated, id)
		case cause == skipErr:
			res.Skipped = append(res.Skipped, id)
		default:
			switch cause.(type) {
			case *core.ConflictError, *core.NotFoundError, *core.ValidationError, *core.ProvisioningError:
			default:
				svc.logger.Error(fmt.Sprintf("bulk review of application %s: %v", id, err), err)
			}
			res.Failed = append(res.Failed, BulkFailure{ID: id, Error: cause.Error()})
		}
	}
	return res
}

// Login authenticates the applicant through their latest application.
// The failure reason depends on the application status.
func (svc *service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	app, err := svc.repo.GetLatestByUsername(ctx, core.CleanString(username, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, errors.Wrap(err, "finding application by username")
	}

	switch app.Status {
	case StatusPending:
		return LoginResult{}, ErrPendingReview
	case StatusRejected:
		return LoginResult{}, ErrRejected
	}
	if app.AccountID == nil {
		return LoginResult{}, errors.Errorf("approved application %s has no account", app.ID)
	}

	account, err := svc.usrSvc.GetByID(ctx, *app.AccountID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, errors.Wrap(err, "finding account")
	}
	if err = account.CheckPassword(password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !account.Active() {
		return LoginResult{}, ErrAccountInactive
	}

	account, err = svc.usrSvc.SetLastLogin(ctx, account)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "setting lastLogin")
	}
	return LoginResult{Account: account, Track: app.Track, Application: app}, nil
}

type reviewEmailData struct {
	Name     string
	Track    string
	Username string
}

func (svc *service) sendReviewEmail(app Application, tmpl, subject string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.Name, Address: app.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: reviewEmailData{
			Name:     app.Name,
			Track:    app.Track.Label(),
			Username: app.Username,
		},
	})
}
