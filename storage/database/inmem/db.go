package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/application"
	"github.com/arkofgod/ark/core/broadcast"
	"github.com/arkofgod/ark/core/devotion"
	"github.com/arkofgod/ark/core/notification"
	"github.com/arkofgod/ark/core/user"
)

var errNoSQL = errors.New("in-memory database does not run SQL")

type (
	// DB keeps every table in memory. Rows are stored in insertion order.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex
		tables
	}

	tables struct {
		users        []user.User
		applications []application.Application
		deviceTokens []notification.DeviceToken
		broadcasts   map[broadcast.Kind]broadcast.Broadcast
		devotions    []devotion.Devotion
	}
)

func Open() *DB {
	return &DB{tables: tables{broadcasts: make(map[broadcast.Kind]broadcast.Broadcast)}}
}

func (t tables) clone() tables {
	c := tables{
		users:        append([]user.User(nil), t.users...),
		applications: append([]application.Application(nil), t.applications...),
		deviceTokens: append([]notification.DeviceToken(nil), t.deviceTokens...),
		broadcasts:   make(map[broadcast.Kind]broadcast.Broadcast, len(t.broadcasts)),
		devotions:    append([]devotion.Devotion(nil), t.devotions...),
	}
	for k, b := range t.broadcasts {
		c.broadcasts[k] = b
	}
	return c
}

// Transactor serializes units of work and restores the tables when one fails.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.mu.RLock()
	snapshot := t.db.tables.clone()
	t.db.mu.RUnlock()

	rollback := func() {
		t.db.mu.Lock()
		t.db.tables = snapshot
		t.db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(txExecutor{}); err != nil {
		rollback()
		return err
	}
	return nil
}

// txExecutor only marks repository calls as part of a unit of work.
type txExecutor struct{}

func (txExecutor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (txExecutor) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (txExecutor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}
