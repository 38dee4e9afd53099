package inmemdb

import (
	"context"
	"time"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/broadcast"
)

type broadcastRepository struct {
	db *DB
}

var _ broadcast.Repository = (*broadcastRepository)(nil)

func NewBroadcastRepository(db *DB) *broadcastRepository {
	return &broadcastRepository{db: db}
}

func (repo *broadcastRepository) GetOrCreate(_ context.Context, b broadcast.Broadcast, _ ...core.DBExecutor) (broadcast.Broadcast, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if stored, ok := repo.db.broadcasts[b.Kind]; ok {
		return stored, nil
	}
	stored := broadcast.Broadcast{Kind: b.Kind, Title: b.Title, Topic: b.Topic, UpdatedAt: b.UpdatedAt}
	repo.db.broadcasts[b.Kind] = stored
	return stored, nil
}

func (repo *broadcastRepository) Activate(_ context.Context, b broadcast.Broadcast, _ ...core.DBExecutor) (broadcast.Broadcast, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.broadcasts[b.Kind]
	if !ok || stored.IsActive {
		return broadcast.Broadcast{}, broadcast.ErrNotTransitioned
	}
	b.IsActive = true
	b.EndedAt = nil
	repo.db.broadcasts[b.Kind] = b
	return b, nil
}

func (repo *broadcastRepository) Deactivate(_ context.Context, kind broadcast.Kind, at time.Time, _ ...core.DBExecutor) (broadcast.Broadcast, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.broadcasts[kind]
	if !ok || !stored.IsActive {
		return broadcast.Broadcast{}, broadcast.ErrNotTransitioned
	}
	stored.IsActive = false
	stored.EndedAt = &at
	stored.UpdatedAt = at
	repo.db.broadcasts[kind] = stored
	return stored, nil
}

func (repo *broadcastRepository) UpdateTopic(_ context.Context, kind broadcast.Kind, topic string, at time.Time, _ ...core.DBExecutor) (broadcast.Broadcast, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.broadcasts[kind]
	if !ok {
		return broadcast.Broadcast{}, broadcast.ErrUnknownKind
	}
	stored.Topic = topic
	stored.UpdatedAt = at
	repo.db.broadcasts[kind] = stored
	return stored, nil
}
