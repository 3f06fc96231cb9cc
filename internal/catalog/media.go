package catalog

import (
	"context"
	"strconv"
)

const defaultVideoMime = "video/mp4"

// MediaFile is a resolved video attachment ready to be streamed.
type MediaFile struct {
	ID       int
	media    *Media
	upstream Upstream
}

// Open resolves a video message for streaming or download.
func (s *Service) Open(ctx context.Context, alias string, id int) (*MediaFile, error) {
	ch, err := s.channels.Resolve(alias)
	if err != nil {
		return nil, err
	}
	msg, err := s.fetchVideo(ctx, ch, id)
	if err != nil {
		return nil, err
	}
	return &MediaFile{ID: id, media: msg.Media, upstream: s.upstream}, nil
}

func (f *MediaFile) Size() (int64, bool) {
	return f.media.Size, f.media.HasSize
}

func (f *MediaFile) MimeType() string {
	if f.media.MimeType != "" {
		return f.media.MimeType
	}
	return defaultVideoMime
}

// FileName is the attachment name, or video_<id>.mp4.
func (f *MediaFile) FileName() string {
	if f.media.FileName != "" {
		return f.media.FileName
	}
	return "video_" + strconv.Itoa(f.ID) + ".mp4"
}

func (f *MediaFile) ReadRange(ctx context.Context, offset, length int64) ([]byte, error) {
	data, err := f.upstream.ReadRange(ctx, f.media, offset, length)
	if err != nil {
		return nil, upstreamFailure("read range", err)
	}
	return data, nil
}

func (f *MediaFile) Stream(ctx context.Context, chunkSize int, fn func([]byte) error) error {
	return f.upstream.Stream(ctx, f.media, chunkSize, fn)
}
