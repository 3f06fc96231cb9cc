package telegram

import (
	"sort"
	"time"

	"github.com/gotd/td/tg"

	"github.com/media1take/Telegram-hosting/internal/catalog"
)

// botAPIChannelOffset is the -100... prefix Bot API style ids carry.
const botAPIChannelOffset = 1_000_000_000_000

// NormalizeChannelID converts a configured id into the bare MTProto channel
// id used by InputPeerChannel.
func NormalizeChannelID(id int64) int64 {
	switch {
	case id < -botAPIChannelOffset:
		return -id - botAPIChannelOffset
	case id < 0:
		return -id
	default:
		return id
	}
}

// projectMessages drops empty messages. Service messages stay as entries
// without media so a full history page still projects to a full page.
func projectMessages(classes []tg.MessageClass, channelID int64) []catalog.Message {
	out := make([]catalog.Message, 0, len(classes))
	for _, class := range classes {
		switch msg := class.(type) {
		case *tg.Message:
			out = append(out, projectMessage(msg, channelID))
		case *tg.MessageService:
			out = append(out, catalog.Message{
				ID:        msg.ID,
				ChannelID: channelID,
				Date:      time.Unix(int64(msg.Date), 0).UTC(),
			})
		}
	}
	return out
}

// projectMessage maps an upstream message to the optional-field view. Any
// attribute the server omitted stays at its zero value.
func projectMessage(msg *tg.Message, channelID int64) catalog.Message {
	out := catalog.Message{
		ID:        msg.ID,
		ChannelID: channelID,
		Date:      time.Unix(int64(msg.Date), 0).UTC(),
	}
	media, ok := msg.Media.(*tg.MessageMediaDocument)
	if !ok || media.Document == nil {
		return out
	}
	doc, ok := media.Document.AsNotEmpty()
	if !ok {
		return out
	}

	m := &catalog.Media{
		MimeType: doc.MimeType,
		Size:     doc.Size,
		HasSize:  true,
		Handle:   doc,
	}
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeVideo:
			if !a.RoundMessage {
				m.NativeVideo = true
				m.Duration = float64(a.Duration)
				m.HasDuration = true
			}
		case *tg.DocumentAttributeFilename:
			m.FileName = a.FileName
		}
	}
	m.Thumbs = projectThumbs(doc.Thumbs)
	out.Media = m
	return out
}

// projectThumbs keeps downloadable JPEG previews ordered smallest first.
// Stripped and vector sizes are not standalone images.
func projectThumbs(sizes []tg.PhotoSizeClass) []catalog.Thumb {
	var out []catalog.Thumb
	for _, size := range sizes {
		switch s := size.(type) {
		case *tg.PhotoSize:
			out = append(out, catalog.Thumb{Type: s.Type, Width: s.W, Height: s.H, Size: s.Size})
		case *tg.PhotoCachedSize:
			out = append(out, catalog.Thumb{Type: s.Type, Width: s.W, Height: s.H, Size: len(s.Bytes), Inline: s.Bytes})
		case *tg.PhotoSizeProgressive:
			total := 0
			if n := len(s.Sizes); n > 0 {
				total = s.Sizes[n-1]
			}
			out = append(out, catalog.Thumb{Type: s.Type, Width: s.W, Height: s.H, Size: total})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Width*out[i].Height < out[j].Width*out[j].Height
	})
	return out
}

func documentOf(media *catalog.Media) (*tg.Document, bool) {
	if media == nil {
		return nil, false
	}
	doc, ok := media.Handle.(*tg.Document)
	return doc, ok && doc != nil
}
