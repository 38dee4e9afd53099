package devotion

import (
	"context"

	"github.com/arkofgod/ark/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service notifying devices synchronously.
func NewServiceMock(repo Repository, notifier Notifier, logger core.Logger) Service {
	return &serviceMock{
		service: service{
			repo:     repo,
			notifier: notifier,
			logger:   logger,
		},
	}
}

func (svc *serviceMock) Publish(ctx context.Context, nd NewDevotion) (Devotion, error) {
	dev, err := svc.create(ctx, nd)
	if err != nil {
		return Devotion{}, err
	}
	// run synchronously
	svc.notifyDevices(dev)
	return dev, nil
}
