package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound = core.NewNotFoundError("device token not found")
)

type (
	Repository interface {
		// UpsertToken creates the token or refreshes its last use. created tells which happened.
		UpsertToken(ctx context.Context, dt DeviceToken, exec ...core.DBExecutor) (DeviceToken, bool, error)
		ListTokens(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
		TouchTokens(ctx context.Context, tokens []string, at time.Time, exec ...core.DBExecutor) error
		DeleteTokens(ctx context.Context, tokens []string, exec ...core.DBExecutor) error
		CountTokens(ctx context.Context, exec ...core.DBExecutor) (int, error)
	}

	// TokenStore is the registry view the Dispatcher needs.
	TokenStore interface {
		ListTokens(ctx context.Context) ([]string, error)
		Touch(ctx context.Context, tokens []string) error
		Remove(ctx context.Context, tokens []string) error
	}

	// Registry stores the device push tokens.
	Registry struct {
		repo Repository
	}
)

var _ TokenStore = (*Registry)(nil)

func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// Register adds the token or marks it as used if it is already known.
func (reg *Registry) Register(ctx context.Context, nd NewDevice) (DeviceToken, bool, error) {
	token := core.CleanString(nd.Token) // tokens are case-sensitive
	if token == "" {
		return DeviceToken{}, false, core.NewValidationError(nil, core.FieldError{Field: "token", Error: "this field is required"})
	}
	now := NowFunc().UTC()
	dt, created, err := reg.repo.UpsertToken(ctx, DeviceToken{Token: token, CreatedAt: now, LastUsed: &now})
	if err != nil {
		return DeviceToken{}, false, errors.Wrap(err, "upserting device token")
	}
	return dt, created, nil
}

func (reg *Registry) ListTokens(ctx context.Context) ([]string, error) {
	return reg.repo.ListTokens(ctx)
}

func (reg *Registry) Count(ctx context.Context) (int, error) {
	return reg.repo.CountTokens(ctx)
}

// Touch records that tokens were successfully used.
func (reg *Registry) Touch(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return reg.repo.TouchTokens(ctx, tokens, NowFunc().UTC())
}

// Remove forgets tokens, e.g. the ones the gateway no longer knows.
func (reg *Registry) Remove(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return reg.repo.DeleteTokens(ctx, tokens)
}
