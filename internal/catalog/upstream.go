package catalog

import "context"

// HistoryQuery selects one page of channel history.
//
// Descending pages (the default) return the newest messages with
// ID < OffsetID (0 means from the newest) and ID > MinID, newest first.
// Ascending pages return the oldest messages with ID > MinID, oldest first.
type HistoryQuery struct {
	Limit     int
	OffsetID  int
	MinID     int
	Ascending bool
}

// Upstream is the messaging platform client as seen by the catalog. A single
// connection is shared across all concurrent requests.
type Upstream interface {
	History(ctx context.Context, ch Channel, q HistoryQuery) ([]Message, error)
	// Message returns nil, nil when the id does not exist in the channel.
	Message(ctx context.Context, ch Channel, id int) (*Message, error)
	// ReadRange may return fewer than length bytes near end of file.
	ReadRange(ctx context.Context, media *Media, offset, length int64) ([]byte, error)
	// Stream calls fn with consecutive chunks of at most chunkSize bytes.
	Stream(ctx context.Context, media *Media, chunkSize int, fn func([]byte) error) error
	Thumbnail(ctx context.Context, media *Media, thumb Thumb) ([]byte, error)
}
