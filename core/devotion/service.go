package devotion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/notification"
)

const notifyTimeout = 2 * time.Minute

var (
	NowFunc = time.Now // mockable

	ErrNotFound = core.NewNotFoundError("devotion not found")
)

type (
	Repository interface {
		CreateDevotion(ctx context.Context, dev Devotion, exec ...core.DBExecutor) (Devotion, error)
		GetDevotion(ctx context.Context, id string, exec ...core.DBExecutor) (Devotion, error)
		// QueryDevotions returns the latest devotions first (by devotion date, then creation time).
		QueryDevotions(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Devotion, error)
	}

	// Notifier fans a notification out to devices, see notification.Dispatcher.
	Notifier interface {
		Dispatch(ctx context.Context, n notification.Notification, tokens []string) (notification.Result, error)
	}

	Service interface {
		Publish(ctx context.Context, nd NewDevotion) (Devotion, error)
		Get(ctx context.Context, id string) (Devotion, error)
		List(ctx context.Context, limit int) ([]Devotion, error)
		// Wait blocks until every background notification started by Publish is done, or ctx is done.
		Wait(ctx context.Context) error
	}

	service struct {
		repo     Repository
		notifier Notifier
		logger   core.Logger
		wg       sync.WaitGroup
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, notifier Notifier, logger core.Logger) Service {
	return &service{repo: repo, notifier: notifier, logger: logger}
}

// Publish stores the devotion and notifies every registered device in the background.
func (svc *service) Publish(ctx context.Context, nd NewDevotion) (Devotion, error) {
	dev, err := svc.create(ctx, nd)
	if err != nil {
		return Devotion{}, err
	}
	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		svc.notifyDevices(dev)
	}()
	return dev, nil
}

func (svc *service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (svc *service) create(ctx context.Context, nd NewDevotion) (Devotion, error) {
	nd.Clean()
	now := NowFunc().UTC()
	dev := Devotion{
		Title:        nd.Title,
		ContentType:  nd.ContentType,
		Description:  nd.Description,
		TextContent:  nd.TextContent,
		YouTubeURL:   nd.YouTubeURL,
		DevotionDate: nd.DevotionDate,
		CreatedAt:    now,
	}
	if dev.DevotionDate.IsZero() {
		dev.DevotionDate = NewDate(now)
	}
	dev, err := svc.repo.CreateDevotion(ctx, dev)
	if err != nil {
		return Devotion{}, errors.Wrap(err, "creating devotion")
	}
	dev.Thumbnail = YouTubeThumbnail(dev.YouTubeURL)
	return dev, nil
}

func (svc *service) notifyDevices(dev Devotion) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	body := dev.Description
	if body == "" {
		body = "A new devotion is available. Tap to read it."
	}
	res, err := svc.notifier.Dispatch(ctx, notification.Notification{
		Title: "New Devotion: " + dev.Title,
		Body:  body,
		Data: map[string]interface{}{
			"type":        "devotion",
			"devotion_id": dev.ID,
		},
	}, nil)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying devices of devotion %s: %v", dev.ID, err), err)
		return
	}
	if res.Status != notification.StatusSuccess {
		svc.logger.Warn(fmt.Sprintf("devotion %s notifications: %s", dev.ID, res.Message))
		return
	}
	svc.logger.Info(fmt.Sprintf("devotion %s notifications: %s", dev.ID, res.Message))
}

func (svc *service) Get(ctx context.Context, id string) (Devotion, error) {
	if !core.IsValidID(id) {
		return Devotion{}, ErrNotFound
	}
	dev, err := svc.repo.GetDevotion(ctx, id)
	if err != nil {
		return Devotion{}, err
	}
	dev.Thumbnail = YouTubeThumbnail(dev.YouTubeURL)
	return dev, nil
}

func (svc *service) List(ctx context.Context, limit int) ([]Devotion, error) {
	devs, err := svc.repo.QueryDevotions(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying devotions")
	}
	for i := range devs {
		devs[i].Thumbnail = YouTubeThumbnail(devs[i].YouTubeURL)
	}
	return devs, nil
}
