package devotion

import (
	"regexp"
	"time"

	"github.com/arkofgod/ark/core"
)

type ContentType string

// Content types
const (
	ContentText  ContentType = "text"
	ContentVideo ContentType = "video"
)

const dateLayout = "2006-01-02"

var youtubeIDRegex = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`)

type Devotion struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	ContentType  ContentType `json:"content_type"`
	Description  string      `json:"description"`
	TextContent  string      `json:"text_content"`
	YouTubeURL   string      `json:"youtube_url"`
	Thumbnail    string      `json:"thumbnail"`
	DevotionDate Date        `json:"devotion_date"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
}

// Date is a calendar day, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &time.ParseError{Layout: dateLayout, Value: s}
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// YouTubeThumbnail returns the high resolution thumbnail of a watch, short or embed YouTube URL.
// Empty when no video ID is found.
func YouTubeThumbnail(url string) string {
	if id := YouTubeID(url); id != "" {
		return "https://img.youtube.com/vi/" + id + "/maxresdefault.jpg"
	}
	return ""
}

func YouTubeID(url string) string {
	m := youtubeIDRegex.FindStringSubmatch(url)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// NewDevotion contains information needed to publish a Devotion.
type NewDevotion struct {
	Title        string      `json:"title" validate:"required,max=200"`
	ContentType  ContentType `json:"content_type" validate:"required,oneof=text video"`
	Description  string      `json:"description"`
	TextContent  string      `json:"text_content"`
	YouTubeURL   string      `json:"youtube_url" validate:"omitempty,httpurl"`
	DevotionDate Date        `json:"devotion_date"`
}

func (nd *NewDevotion) Clean() {
	nd.Title = core.CleanString(nd.Title)
	nd.ContentType = ContentType(core.CleanString(string(nd.ContentType), true /* lower */))
	nd.Description = core.CleanString(nd.Description)
	nd.TextContent = core.CleanString(nd.TextContent)
	nd.YouTubeURL = core.CleanString(nd.YouTubeURL)
}
