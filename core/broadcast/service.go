package broadcast

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
)

var (
	NowFunc = time.Now // mockable

	// ErrNotTransitioned is returned by the repository when the compare-and-swap matched nothing.
	ErrNotTransitioned = errors.New("broadcast state unchanged")

	ErrUnknownKind   = core.NewNotFoundError("unknown broadcast")
	ErrURLRequired   = core.NewValidationError(nil, core.FieldError{Field: "url", Error: "YouTube URL is required"})
	ErrInvalidURL    = core.NewValidationError(nil, core.FieldError{Field: "url", Error: "Please enter a valid URL"})
	ErrTopicRequired = core.NewValidationError(nil, core.FieldError{Field: "topic", Error: "Topic is required"})

	messages = map[Kind]struct{ alreadyActive, notActive, noActive string }{
		KindLiveStream: {"Stream is already active", "Stream is not active", "No active stream"},
		KindPrayerRoom: {"The prayer room is already active", "The prayer room is not active", "No active prayer room"},
	}
)

type (
	Repository interface {
		// GetOrCreate returns the row of kind, inserting an inactive one if missing.
		GetOrCreate(ctx context.Context, b Broadcast, exec ...core.DBExecutor) (Broadcast, error)
		// Activate sets b as the active state of b.Kind only if it is currently inactive, ErrNotTransitioned otherwise.
		Activate(ctx context.Context, b Broadcast, exec ...core.DBExecutor) (Broadcast, error)
		// Deactivate ends the broadcast of kind only if it is currently active, ErrNotTransitioned otherwise.
		Deactivate(ctx context.Context, kind Kind, at time.Time, exec ...core.DBExecutor) (Broadcast, error)
		UpdateTopic(ctx context.Context, kind Kind, topic string, at time.Time, exec ...core.DBExecutor) (Broadcast, error)
	}

	Service interface {
		Get(ctx context.Context, kind Kind) (Broadcast, error)
		Active(ctx context.Context, kind Kind) (Broadcast, error)
		Start(ctx context.Context, kind Kind, sb StartBroadcast) (Broadcast, error)
		End(ctx context.Context, kind Kind) (Broadcast, error)
		UpdateTopic(ctx context.Context, kind Kind, ut UpdateTopic) (Broadcast, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Get(ctx context.Context, kind Kind) (Broadcast, error) {
	if !kind.IsValid() {
		return Broadcast{}, ErrUnknownKind
	}
	return svc.repo.GetOrCreate(ctx, Broadcast{Kind: kind, Title: kind.defaultTitle(), Topic: kind.defaultTopic(), UpdatedAt: NowFunc().UTC()})
}

// Active returns the broadcast of kind if it is live, a NotFoundError otherwise.
func (svc *service) Active(ctx context.Context, kind Kind) (Broadcast, error) {
	b, err := svc.Get(ctx, kind)
	if err != nil {
		return Broadcast{}, err
	}
	if !b.IsActive {
		return Broadcast{}, core.NewNotFoundError(messages[kind].noActive)
	}
	return b, nil
}

// Start goes live in one atomic transition. An already active broadcast is left untouched.
func (svc *service) Start(ctx context.Context, kind Kind, sb StartBroadcast) (Broadcast, error) {
	if !kind.IsValid() {
		return Broadcast{}, ErrUnknownKind
	}
	sb.Clean()
	if sb.URL == "" {
		return Broadcast{}, ErrURLRequired
	}
	if !core.IsHTTPURL(sb.URL) {
		return Broadcast{}, ErrInvalidURL
	}

	// make sure the singleton row exists
	if _, err := svc.Get(ctx, kind); err != nil {
		return Broadcast{}, err
	}

	now := NowFunc().UTC()
	b := Broadcast{
		Kind:         kind,
		Title:        sb.Title,
		Description:  sb.Description,
		Topic:        sb.Topic,
		URL:          sb.URL,
		ThumbnailURL: sb.ThumbnailURL,
		IsActive:     true,
		StartedAt:    &now,
		UpdatedAt:    now,
	}
	if b.Title == "" {
		b.Title = kind.defaultTitle()
	}
	if b.Topic == "" {
		b.Topic = kind.defaultTopic()
	}

	b, err := svc.repo.Activate(ctx, b)
	if err != nil {
		if errors.Cause(err) == ErrNotTransitioned {
			return Broadcast{}, core.NewConflictError(messages[kind].alreadyActive)
		}
		return Broadcast{}, errors.Wrap(err, "activating broadcast")
	}
	return b, nil
}

// End stops the broadcast in one atomic transition. An inactive broadcast is left untouched.
func (svc *service) End(ctx context.Context, kind Kind) (Broadcast, error) {
	if !kind.IsValid() {
		return Broadcast{}, ErrUnknownKind
	}
	if _, err := svc.Get(ctx, kind); err != nil {
		return Broadcast{}, err
	}

	b, err := svc.repo.Deactivate(ctx, kind, NowFunc().UTC())
	if err != nil {
		if errors.Cause(err) == ErrNotTransitioned {
			return Broadcast{}, core.NewConflictError(messages[kind].notActive)
		}
		return Broadcast{}, errors.Wrap(err, "deactivating broadcast")
	}
	return b, nil
}

func (svc *service) UpdateTopic(ctx context.Context, kind Kind, ut UpdateTopic) (Broadcast, error) {
	if !kind.IsValid() {
		return Broadcast{}, ErrUnknownKind
	}
	topic := core.CleanString(ut.Topic)
	if topic == "" {
		return Broadcast{}, ErrTopicRequired
	}
	if _, err := svc.Get(ctx, kind); err != nil {
		return Broadcast{}, err
	}
	b, err := svc.repo.UpdateTopic(ctx, kind, topic, NowFunc().UTC())
	if err != nil {
		return Broadcast{}, errors.Wrap(err, "updating broadcast topic")
	}
	return b, nil
}
