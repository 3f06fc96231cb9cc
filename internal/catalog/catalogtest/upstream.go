// Package catalogtest provides an in-memory catalog.Upstream for tests.
package catalogtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/media1take/Telegram-hosting/internal/catalog"
)

// File is the Handle the fake understands: raw bytes plus an optional cap on
// how much a single ReadRange may deliver.
type File struct {
	Data    []byte
	MaxRead int
}

type Upstream struct {
	mu       sync.Mutex
	messages map[int64][]catalog.Message

	// Err, when set, fails every call.
	Err error

	HistoryCalls   int
	MessageCalls   int
	ThumbnailCalls int
	ReadCalls      int
	StreamCalls    int

	// ThumbnailDelay stalls Thumbnail so concurrent callers overlap.
	ThumbnailDelay time.Duration
	// ChunkDelay paces Stream between chunks, keeping a stream open.
	ChunkDelay time.Duration
}

func New() *Upstream {
	return &Upstream{messages: make(map[int64][]catalog.Message)}
}

// Add stores messages under channelID, stamping ChannelID on each.
func (u *Upstream) Add(channelID int64, msgs ...catalog.Message) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, msg := range msgs {
		msg.ChannelID = channelID
		u.messages[channelID] = append(u.messages[channelID], msg)
	}
	list := u.messages[channelID]
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

func (u *Upstream) Counts() (history, message, thumbnail int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.HistoryCalls, u.MessageCalls, u.ThumbnailCalls
}

func (u *Upstream) History(ctx context.Context, ch catalog.Channel, q catalog.HistoryQuery) ([]catalog.Message, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.HistoryCalls++
	if u.Err != nil {
		return nil, u.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := u.messages[ch.ID]
	var out []catalog.Message
	if q.Ascending {
		for _, msg := range all {
			if msg.ID > q.MinID && len(out) < q.Limit {
				out = append(out, msg)
			}
		}
		return out, nil
	}
	for i := len(all) - 1; i >= 0 && len(out) < q.Limit; i-- {
		msg := all[i]
		if q.OffsetID > 0 && msg.ID >= q.OffsetID {
			continue
		}
		if msg.ID <= q.MinID {
			break
		}
		out = append(out, msg)
	}
	return out, nil
}

func (u *Upstream) Message(ctx context.Context, ch catalog.Channel, id int) (*catalog.Message, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.MessageCalls++
	if u.Err != nil {
		return nil, u.Err
	}
	for _, msg := range u.messages[ch.ID] {
		if msg.ID == id {
			found := msg
			return &found, nil
		}
	}
	return nil, nil
}

func fileOf(media *catalog.Media) (File, error) {
	f, ok := media.Handle.(File)
	if !ok {
		return File{}, errors.New("catalogtest: media has no File handle")
	}
	return f, nil
}

func (u *Upstream) ReadRange(ctx context.Context, media *catalog.Media, offset, length int64) ([]byte, error) {
	u.mu.Lock()
	u.ReadCalls++
	err := u.Err
	u.mu.Unlock()
	if err != nil {
		return nil, err
	}
	f, err := fileOf(media)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(f.Data)) {
		return nil, nil
	}
	end := min(offset+length, int64(len(f.Data)))
	if f.MaxRead > 0 {
		end = min(end, offset+int64(f.MaxRead))
	}
	return append([]byte(nil), f.Data[offset:end]...), nil
}

func (u *Upstream) Stream(ctx context.Context, media *catalog.Media, chunkSize int, fn func([]byte) error) error {
	u.mu.Lock()
	u.StreamCalls++
	err := u.Err
	delay := u.ChunkDelay
	u.mu.Unlock()
	if err != nil {
		return err
	}
	f, err := fileOf(media)
	if err != nil {
		return err
	}
	for off := 0; off < len(f.Data); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+chunkSize, len(f.Data))
		if err := fn(f.Data[off:end]); err != nil {
			return err
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

func (u *Upstream) Thumbnail(ctx context.Context, media *catalog.Media, thumb catalog.Thumb) ([]byte, error) {
	u.mu.Lock()
	u.ThumbnailCalls++
	err := u.Err
	delay := u.ThumbnailDelay
	u.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if thumb.Inline != nil {
		return thumb.Inline, nil
	}
	return []byte("jpeg:" + thumb.Type), nil
}

// Video builds a native video message with a single "m" preview.
func Video(id int, date time.Time, name string, size int64) catalog.Message {
	return catalog.Message{
		ID:   id,
		Date: date,
		Media: &catalog.Media{
			NativeVideo: true,
			FileName:    name,
			MimeType:    "video/mp4",
			Size:        size,
			HasSize:     true,
			Duration:    61.5,
			HasDuration: true,
			Thumbs:      []catalog.Thumb{{Type: "m", Width: 320, Height: 180}},
		},
	}
}

// Text builds a message without media.
func Text(id int, date time.Time) catalog.Message {
	return catalog.Message{ID: id, Date: date}
}
