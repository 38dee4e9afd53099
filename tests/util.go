package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/arkofgod/ark/core/application"
	"github.com/arkofgod/ark/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateApplication stores a pending application, bypassing the submission checks.
func CreateApplication(
	t *testing.T,
	repo application.Repository,
	name, uname, email, pwd string,
	track application.Track,
	createdAt ...time.Time,
) application.Application {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	app := application.Application{
		Name:       name,
		Email:      email,
		Phone:      "+243 900 000 000",
		Motivation: "To grow in faith",
		Track:      track,
		Username:   uname,
		Status:     application.StatusPending,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	if err := app.SetPassword(pwd); err != nil {
		t.Fatalf("CreateApplication() failed: %v", err)
	}
	app, err := repo.CreateApplication(context.Background(), app)
	if err != nil {
		t.Fatalf("CreateApplication() failed: %v", err)
	}
	return app
}
