package inmemdb

import (
	"context"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) checkUniqueness(username, email, excludedID string) error {
	for _, usr := range repo.db.users {
		if usr.ID == excludedID {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email, excludedID string, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkUniqueness(username, email, excludedID)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email, ""); err != nil {
		return user.User{}, err
	}
	if usr.ID == "" {
		usr.ID = core.NewID()
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	repo.db.users = append(repo.db.users, usr)
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		var match bool
		switch {
		case filter.ID != "":
			match = usr.ID == filter.ID
		case filter.Username != "":
			match = usr.Username == filter.Username
		case filter.UsernameOrEmail != "":
			match = usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail
		}
		if match {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, orig := range repo.db.users {
		if orig.ID != usr.ID {
			continue
		}
		if err := repo.checkUniqueness(usr.Username, usr.Email, usr.ID); err != nil {
			return user.User{}, err
		}
		usr.CreatedAt = orig.CreatedAt
		repo.db.users[i] = usr
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

// CountUsers is used by tests asserting on provisioning.
func (repo *userRepository) CountUsers() int {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.users)
}
