package application

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/user"
)

type (
	Track  string
	Status string
)

// Tracks
const (
	TrackSonsOfJohnChi Track = "sons_of_john_chi"
	TrackMentorship    Track = "mentorship"
)

// Statuses
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var (
	Tracks   = []Track{TrackSonsOfJohnChi, TrackMentorship}
	Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

	trackLabels = map[Track]string{
		TrackSonsOfJohnChi: "Sons of John Chi",
		TrackMentorship:    "Mentorship",
	}
)

func (t Track) IsValid() bool {
	_, ok := trackLabels[t]
	return ok
}

func (t Track) Label() string {
	if label, ok := trackLabels[t]; ok {
		return label
	}
	return string(t)
}

func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Application is one person's request to join a Track.
type Application struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Country      string     `json:"country"`
	Motivation   string     `json:"motivation"`
	Expectations string     `json:"expectations"`
	Track        Track      `json:"track"`
	Username     string     `json:"username"`
	PasswordHash []byte     `json:"-"`
	Status       Status     `json:"status"`
	ReviewedBy   *string    `json:"reviewed_by"`
	ReviewedAt   *time.Time `json:"reviewed_at"` // UTC
	AccountID    *string    `json:"account_id"`
	ReopenedFrom *string    `json:"reopened_from"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
}

func (app *Application) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	app.PasswordHash = hash
	return nil
}

func (app *Application) newAccount() user.NewAccount {
	return user.NewAccount{
		Username:     app.Username,
		Email:        app.Email,
		Name:         app.Name,
		Contact:      app.Phone,
		Country:      app.Country,
		PasswordHash: app.PasswordHash,
	}
}

func (app *Application) contactUpdate() user.ContactUpdate {
	return user.ContactUpdate{
		Name:    app.Name,
		Email:   app.Email,
		Contact: app.Phone,
		Country: app.Country,
	}
}

// NewApplication contains information needed to submit an Application.
type NewApplication struct {
	Name            string `json:"name" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Phone           string `json:"phone" validate:"required,phone"`
	Country         string `json:"country" validate:"omitempty,max=100"`
	Motivation      string `json:"motivation" validate:"required"`
	Expectations    string `json:"expectations"`
	Track           Track  `json:"track" validate:"required,track"`
	Username        string `json:"username" validate:"required,min=3,max=150,alphanum_"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewApplication) Clean() {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
	na.Country = core.CleanString(na.Country)
	na.Motivation = core.CleanString(na.Motivation)
	na.Expectations = core.CleanString(na.Expectations)
	na.Track = Track(core.CleanString(string(na.Track), true /* lower */))
	na.Username = core.CleanString(na.Username, true /* lower */)
}

// QueryFilter applies AND operation on the set fields.
// Search does a case-insensitive match on one of Name, Email or Username.
type QueryFilter struct {
	Search string `query:"search"`
	Status Status `query:"status"`
	Track  Track  `query:"track"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
	qf.Track = Track(core.CleanString(string(qf.Track), true /* lower */))
}

// BulkFailure is one application a bulk action could not update.
type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult reports a bulk review action, item by item.
type BulkResult struct {
	Updated []string      `json:"updated"`
	Skipped []string      `json:"skipped"`
	Failed  []BulkFailure `json:"failed"`
}

// LoginResult is the outcome of a successful application login.
type LoginResult struct {
	Account     user.User
	Track       Track
	Application Application
}
