package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/application"
)

type applicationRepository struct {
	db *DB
}

var _ application.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func isActive(status application.Status) bool {
	return status == application.StatusPending || status == application.StatusApproved
}

func (repo *applicationRepository) activeExists(email string, track application.Track, excludedID string) bool {
	for _, app := range repo.db.applications {
		if app.ID != excludedID && app.Email == email && app.Track == track && isActive(app.Status) {
			return true
		}
	}
	return false
}

func (repo *applicationRepository) reopenedExists(id string) bool {
	for _, app := range repo.db.applications {
		if app.ReopenedFrom != nil && *app.ReopenedFrom == id {
			return true
		}
	}
	return false
}

func (repo *applicationRepository) rootUsernameExists(username string) bool {
	for _, app := range repo.db.applications {
		if app.ReopenedFrom == nil && app.Username == username {
			return true
		}
	}
	return false
}

func (repo *applicationRepository) CreateApplication(_ context.Context, app application.Application, _ ...core.DBExecutor) (application.Application, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if isActive(app.Status) && repo.activeExists(app.Email, app.Track, "") {
		return application.Application{}, application.ErrActiveDuplicate
	}
	if app.ReopenedFrom != nil && repo.reopenedExists(*app.ReopenedFrom) {
		return application.Application{}, application.ErrAlreadyReopened
	}
	if app.ReopenedFrom == nil && repo.rootUsernameExists(app.Username) {
		return application.Application{}, application.ErrUsernameTaken
	}
	if app.ID == "" {
		app.ID = core.NewID()
	}
	repo.db.applications = append(repo.db.applications, app)
	return app, nil
}

func (repo *applicationRepository) GetApplication(_ context.Context, id string, _ ...core.DBExecutor) (application.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, app := range repo.db.applications {
		if app.ID == id {
			return app, nil
		}
	}
	return application.Application{}, application.ErrNotFound
}

// GetApplicationForUpdate relies on the Transactor serializing units of work.
func (repo *applicationRepository) GetApplicationForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (application.Application, error) {
	return repo.GetApplication(ctx, id, exec...)
}

func (repo *applicationRepository) GetLatestByUsername(_ context.Context, username string, _ ...core.DBExecutor) (application.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var (
		latest application.Application
		found  bool
	)
	for _, app := range repo.db.applications {
		if app.Username == username && (!found || !app.CreatedAt.Before(latest.CreatedAt)) {
			latest, found = app, true
		}
	}
	if !found {
		return application.Application{}, application.ErrNotFound
	}
	return latest, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func compareApplications(a, b application.Application, field string) int {
	var x, y string
	switch field {
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
		return 0
	case "updated_at":
		switch {
		case a.UpdatedAt.Before(b.UpdatedAt):
			return -1
		case a.UpdatedAt.After(b.UpdatedAt):
			return 1
		}
		return 0
	case "name":
		x, y = a.Name, b.Name
	case "email":
		x, y = a.Email, b.Email
	case "username":
		x, y = a.Username, b.Username
	case "status":
		x, y = string(a.Status), string(b.Status)
	case "track":
		x, y = string(a.Track), string(b.Track)
	}
	return strings.Compare(x, y)
}

func (repo *applicationRepository) QueryApplications(
	_ context.Context,
	filter application.QueryFilter,
	orderings []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]application.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	apps := make([]application.Application, 0, len(repo.db.applications))
	for _, app := range repo.db.applications {
		if filter.Search != "" && !containsFold(app.Name, filter.Search) &&
			!containsFold(app.Email, filter.Search) && !containsFold(app.Username, filter.Search) {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.Track != "" && app.Track != filter.Track {
			continue
		}
		apps = append(apps, app)
	}

	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	if !orderings[0].Ascending {
		// ties keep the latest insertions first
		for i, j := 0, len(apps)-1; i < j; i, j = i+1, j-1 {
			apps[i], apps[j] = apps[j], apps[i]
		}
	}
	sort.SliceStable(apps, func(i, j int) bool {
		for _, ord := range orderings {
			c := compareApplications(apps[i], apps[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return apps, nil
}

func (repo *applicationRepository) UsernameExists(_ context.Context, username string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, app := range repo.db.applications {
		if app.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (repo *applicationRepository) ActiveExists(_ context.Context, email string, track application.Track, excludedID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.activeExists(email, track, excludedID), nil
}

func (repo *applicationRepository) ReopenedExists(_ context.Context, id string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.reopenedExists(id), nil
}

func (repo *applicationRepository) UpdateReview(
	_ context.Context,
	app application.Application,
	fromStatus application.Status,
	_ ...core.DBExecutor,
) (application.Application, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, orig := range repo.db.applications {
		if orig.ID != app.ID {
			continue
		}
		if orig.Status != fromStatus {
			return application.Application{}, application.ErrStatusChanged
		}
		if !isActive(orig.Status) && isActive(app.Status) && repo.activeExists(orig.Email, orig.Track, orig.ID) {
			return application.Application{}, application.ErrActiveConflict
		}
		orig.Status = app.Status
		orig.ReviewedBy = app.ReviewedBy
		orig.ReviewedAt = app.ReviewedAt
		orig.AccountID = app.AccountID
		orig.UpdatedAt = app.UpdatedAt
		repo.db.applications[i] = orig
		return orig, nil
	}
	return application.Application{}, application.ErrStatusChanged
}

// Put stores app as is, bypassing every check. Used to set up test fixtures.
func (repo *applicationRepository) Put(app application.Application) application.Application {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if app.ID == "" {
		app.ID = core.NewID()
	}
	repo.db.applications = append(repo.db.applications, app)
	return app
}
