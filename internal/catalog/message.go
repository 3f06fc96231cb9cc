package catalog

import (
	"strconv"
	"strings"
	"time"

	"github.com/media1take/Telegram-hosting/pkg/models"
)

// Message is the upstream projection of a channel post. Every media field is
// optional; the zero value means "absent".
type Message struct {
	ID        int
	ChannelID int64
	Date      time.Time
	Media     *Media
}

type Media struct {
	// NativeVideo is set when the document carries a non-round video attribute.
	NativeVideo bool
	FileName    string
	MimeType    string
	Size        int64
	HasSize     bool
	Duration    float64
	HasDuration bool
	// Thumbs are ordered smallest first.
	Thumbs []Thumb
	// Handle is the upstream file location, opaque to this package.
	Handle any
}

type Thumb struct {
	Type   string
	Width  int
	Height int
	Size   int
	// Inline holds bytes shipped with the message itself, if any.
	Inline []byte
}

// IsVideo reports whether msg carries a native video or a document with a
// video/* MIME type.
func IsVideo(msg *Message) bool {
	if msg == nil || msg.Media == nil {
		return false
	}
	if msg.Media.NativeVideo {
		return true
	}
	return strings.HasPrefix(msg.Media.MimeType, "video")
}

// fileName is the name used for search matching; only the real attachment
// name counts, never the derived title.
func fileName(msg *Message) string {
	if msg == nil || msg.Media == nil {
		return ""
	}
	return msg.Media.FileName
}

// NewVideoRecord maps a message to its metadata view, applying the defaults
// for every missing field.
func NewVideoRecord(msg *Message) models.VideoRecord {
	rec := models.VideoRecord{
		ID:        msg.ID,
		Title:     "Video " + strconv.Itoa(msg.ID),
		Date:      msg.Date.UTC().Format(time.RFC3339),
		Timestamp: msg.Date,
	}
	m := msg.Media
	if m == nil {
		return rec
	}
	if m.FileName != "" {
		rec.Title = m.FileName
	}
	if m.HasSize {
		size := m.Size
		rec.Size = &size
	}
	if m.NativeVideo && m.HasDuration {
		duration := m.Duration
		rec.Duration = &duration
	}
	if m.MimeType != "" {
		mime := m.MimeType
		rec.MimeType = &mime
	}
	rec.ThumbnailExists = m.NativeVideo && len(m.Thumbs) > 0
	return rec
}
