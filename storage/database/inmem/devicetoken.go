package inmemdb

import (
	"context"
	"time"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/notification"
)

type deviceTokenRepository struct {
	db *DB
}

var _ notification.Repository = (*deviceTokenRepository)(nil)

func NewDeviceTokenRepository(db *DB) *deviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

func (repo *deviceTokenRepository) UpsertToken(_ context.Context, dt notification.DeviceToken, _ ...core.DBExecutor) (notification.DeviceToken, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, orig := range repo.db.deviceTokens {
		if orig.Token == dt.Token {
			orig.LastUsed = dt.LastUsed
			repo.db.deviceTokens[i] = orig
			return orig, false, nil
		}
	}
	if dt.ID == "" {
		dt.ID = core.NewID()
	}
	repo.db.deviceTokens = append(repo.db.deviceTokens, dt)
	return dt, true, nil
}

func (repo *deviceTokenRepository) ListTokens(context.Context, ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tokens := make([]string, 0, len(repo.db.deviceTokens))
	for _, dt := range repo.db.deviceTokens {
		tokens = append(tokens, dt.Token)
	}
	return tokens, nil
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

func (repo *deviceTokenRepository) TouchTokens(_ context.Context, tokens []string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	set := toSet(tokens)
	for i := range repo.db.deviceTokens {
		if set[repo.db.deviceTokens[i].Token] {
			lastUsed := at
			repo.db.deviceTokens[i].LastUsed = &lastUsed
		}
	}
	return nil
}

func (repo *deviceTokenRepository) DeleteTokens(_ context.Context, tokens []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	set := toSet(tokens)
	kept := repo.db.deviceTokens[:0]
	for _, dt := range repo.db.deviceTokens {
		if !set[dt.Token] {
			kept = append(kept, dt)
		}
	}
	repo.db.deviceTokens = kept
	return nil
}

func (repo *deviceTokenRepository) CountTokens(context.Context, ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.deviceTokens), nil
}
