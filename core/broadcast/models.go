package broadcast

import (
	"time"

	"github.com/arkofgod/ark/core"
)

type Kind string

// Kinds
const (
	KindLiveStream Kind = "live_stream"
	KindPrayerRoom Kind = "prayer_room"
)

var Kinds = []Kind{KindLiveStream, KindPrayerRoom}

func (k Kind) IsValid() bool {
	return k == KindLiveStream || k == KindPrayerRoom
}

func (k Kind) defaultTitle() string {
	if k == KindPrayerRoom {
		return "Prayer Room"
	}
	return "Live Stream"
}

func (k Kind) defaultTopic() string {
	if k == KindPrayerRoom {
		return "General Prayer"
	}
	return ""
}

// Broadcast is the singleton state of a live stream or of the prayer room.
type Broadcast struct {
	Kind         Kind       `json:"kind"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Topic        string     `json:"topic"`
	URL          string     `json:"url"`
	ThumbnailURL string     `json:"thumbnail_url"`
	IsActive     bool       `json:"is_active"`
	StartedAt    *time.Time `json:"started_at"` // UTC
	EndedAt      *time.Time `json:"ended_at"`   // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
}

// StartBroadcast holds what is needed to go live.
type StartBroadcast struct {
	URL          string `json:"url" validate:"required,httpurl"`
	Title        string `json:"title" validate:"omitempty,max=200"`
	Description  string `json:"description"`
	Topic        string `json:"topic" validate:"omitempty,max=200"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,httpurl"`
}

func (sb *StartBroadcast) Clean() {
	sb.URL = core.CleanString(sb.URL)
	sb.Title = core.CleanString(sb.Title)
	sb.Description = core.CleanString(sb.Description)
	sb.Topic = core.CleanString(sb.Topic)
	sb.ThumbnailURL = core.CleanString(sb.ThumbnailURL)
}

type UpdateTopic struct {
	Topic string `json:"topic" validate:"required,max=200"`
}
