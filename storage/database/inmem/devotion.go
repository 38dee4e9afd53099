package inmemdb

import (
	"context"
	"sort"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/devotion"
)

type devotionRepository struct {
	db *DB
}

var _ devotion.Repository = (*devotionRepository)(nil)

func NewDevotionRepository(db *DB) *devotionRepository {
	return &devotionRepository{db: db}
}

func (repo *devotionRepository) CreateDevotion(_ context.Context, dev devotion.Devotion, _ ...core.DBExecutor) (devotion.Devotion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if dev.ID == "" {
		dev.ID = core.NewID()
	}
	repo.db.devotions = append(repo.db.devotions, dev)
	return dev, nil
}

func (repo *devotionRepository) GetDevotion(_ context.Context, id string, _ ...core.DBExecutor) (devotion.Devotion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, dev := range repo.db.devotions {
		if dev.ID == id {
			return dev, nil
		}
	}
	return devotion.Devotion{}, devotion.ErrNotFound
}

func (repo *devotionRepository) QueryDevotions(_ context.Context, limit int, _ ...core.DBExecutor) ([]devotion.Devotion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	devs := make([]devotion.Devotion, 0, len(repo.db.devotions))
	for i := len(repo.db.devotions) - 1; i >= 0; i-- {
		devs = append(devs, repo.db.devotions[i])
	}
	sort.SliceStable(devs, func(i, j int) bool {
		a, b := devs[i], devs[j]
		if !a.DevotionDate.Equal(b.DevotionDate.Time) {
			return a.DevotionDate.After(b.DevotionDate.Time)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	if limit > 0 && len(devs) > limit {
		devs = devs[:limit]
	}
	return devs, nil
}
