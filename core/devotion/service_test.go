package devotion_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/devotion"
	"github.com/arkofgod/ark/core/notification"
	logsvc "github.com/arkofgod/ark/services/logger"
	"github.com/arkofgod/ark/services/logger/logtest"
	inmemdb "github.com/arkofgod/ark/storage/database/inmem"
)

var ctx = context.Background()

type notifierMock struct {
	mu            sync.Mutex
	notifications []notification.Notification
	tokens        [][]string
}

func (n *notifierMock) Dispatch(_ context.Context, notif notification.Notification, tokens []string) (notification.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notif)
	n.tokens = append(n.tokens, tokens)
	return notification.Result{Status: notification.StatusSuccess, Message: "Successfully sent 1 notifications"}, nil
}

func TestYouTubeThumbnail(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", want: "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{url: "https://youtu.be/dQw4w9WgXcQ?si=abc", want: "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{url: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{url: "https://vimeo.com/1234"},
		{url: ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, devotion.YouTubeThumbnail(tt.url))
		})
	}
}

func TestDate_JSON(t *testing.T) {
	var d devotion.Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-03-10"`)))
	assert.Equal(t, "2024-03-10", d.String())

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-10"`, string(b))

	assert.Error(t, d.UnmarshalJSON([]byte(`"10/03/2024"`)))
	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.True(t, d.IsZero())
}

func Test_serviceMock_Publish(t *testing.T) {
	notifier := new(notifierMock)
	svc := devotion.NewServiceMock(inmemdb.NewDevotionRepository(inmemdb.Open()), notifier, logtest.NewLogger(t))

	devotion.NowFunc = func() time.Time { return time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC) }
	defer func() { devotion.NowFunc = time.Now }()

	dev, err := svc.Publish(ctx, devotion.NewDevotion{
		Title:       " Walking by Faith ",
		ContentType: devotion.ContentVideo,
		Description: "Hebrews 11",
		YouTubeURL:  "https://youtu.be/dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, dev.ID)
	assert.Equal(t, "Walking by Faith", dev.Title)
	assert.Equal(t, "2024-03-10", dev.DevotionDate.String(), "devotion date defaults to today")
	assert.Equal(t, "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg", dev.Thumbnail)

	require.Len(t, notifier.notifications, 1)
	assert.Equal(t, "New Devotion: Walking by Faith", notifier.notifications[0].Title)
	assert.Equal(t, "Hebrews 11", notifier.notifications[0].Body)
	assert.Equal(t, map[string]interface{}{"type": "devotion", "devotion_id": dev.ID}, notifier.notifications[0].Data)
	assert.Nil(t, notifier.tokens[0], "every registered device is notified")

	got, err := svc.Get(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, dev.Thumbnail, got.Thumbnail)

	_, err = svc.Get(ctx, core.NewID())
	assert.Equal(t, devotion.ErrNotFound, errors.Cause(err))
}

func Test_service_List(t *testing.T) {
	svc := devotion.NewServiceMock(inmemdb.NewDevotionRepository(inmemdb.Open()), new(notifierMock), logsvc.NewNopLogger())

	publish := func(title, date string) devotion.Devotion {
		d, err := devotion.ParseDate(date)
		require.NoError(t, err)
		dev, err := svc.Publish(ctx, devotion.NewDevotion{Title: title, ContentType: devotion.ContentText, TextContent: "...", DevotionDate: d})
		require.NoError(t, err)
		return dev
	}
	older := publish("Older", "2024-03-01")
	newer := publish("Newer", "2024-03-05")
	sameDayLater := publish("Same day, later", "2024-03-05")

	devs, err := svc.List(ctx, 0)
	require.NoError(t, err)
	titles := make([]string, 0, len(devs))
	for _, dev := range devs {
		titles = append(titles, dev.Title)
	}
	assert.Equal(t, []string{sameDayLater.Title, newer.Title, older.Title}, titles)

	devs, err = svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, sameDayLater.ID, devs[0].ID)
}

type blockingNotifier struct {
	notifierMock
	release chan struct{}
}

func (n *blockingNotifier) Dispatch(ctx context.Context, notif notification.Notification, tokens []string) (notification.Result, error) {
	<-n.release
	return n.notifierMock.Dispatch(ctx, notif, tokens)
}

func Test_service_Wait(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{})}
	svc := devotion.NewService(inmemdb.NewDevotionRepository(inmemdb.Open()), notifier, logtest.NewLogger(t))

	_, err := svc.Publish(ctx, devotion.NewDevotion{Title: "Grace", ContentType: devotion.ContentText, TextContent: "..."})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, svc.Wait(short), "notification still in flight")

	close(notifier.release)
	require.NoError(t, svc.Wait(ctx))

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.notifications, 1)
	assert.Equal(t, "New Devotion: Grace", notifier.notifications[0].Title)
}
