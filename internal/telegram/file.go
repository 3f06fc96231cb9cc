package telegram

import (
	"bytes"
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
)

// filePartSize is the largest upload.getFile limit; offsets aligned to it
// never cross a 1 MiB boundary.
const filePartSize = 1024 * 1024

type fileRPC interface {
	UploadGetFile(ctx context.Context, request *tg.UploadGetFileRequest) (tg.UploadFileClass, error)
}

// part is one aligned upload.getFile request and the slice of it we keep.
type part struct {
	offset int64
	skip   int64
	take   int64
}

// planParts splits [offset, offset+length) into aligned 1 MiB requests.
func planParts(offset, length int64) []part {
	if length <= 0 {
		return nil
	}
	var parts []part
	end := offset + length
	for cur := offset; cur < end; {
		aligned := cur - cur%filePartSize
		skip := cur - aligned
		take := min(filePartSize-skip, end-cur)
		parts = append(parts, part{offset: aligned, skip: skip, take: take})
		cur += take
	}
	return parts
}

// readRange fetches exactly the requested span, or less when the file ends
// first. A short part means end of file; it is not retried.
func readRange(ctx context.Context, api fileRPC, loc tg.InputFileLocationClass, offset, length int64) ([]byte, error) {
	// Grow per part: length is client controlled and may far exceed the file.
	out := make([]byte, 0, min(length, filePartSize))
	for _, p := range planParts(offset, length) {
		res, err := api.UploadGetFile(ctx, &tg.UploadGetFileRequest{
			Location: loc,
			Offset:   p.offset,
			Limit:    filePartSize,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "get file part at %d", p.offset)
		}
		file, ok := res.(*tg.UploadFile)
		if !ok {
			return nil, errors.Errorf("unexpected file response %T", res)
		}
		data := file.Bytes
		if int64(len(data)) <= p.skip {
			break
		}
		data = data[p.skip:]
		if int64(len(data)) > p.take {
			data = data[:p.take]
		}
		out = append(out, data...)
		if int64(len(data)) < p.take {
			break
		}
	}
	return out, nil
}

// chunkWriter regroups the downloader's parts into fixed-size chunks. The
// slice passed to fn is reused once fn returns.
type chunkWriter struct {
	size int
	buf  []byte
	fn   func([]byte) error
}

func newChunkWriter(size int, fn func([]byte) error) *chunkWriter {
	return &chunkWriter{size: size, buf: make([]byte, 0, size), fn: fn}
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(w.size-len(w.buf), len(p))
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		written += n
		if len(w.buf) == w.size {
			if err := w.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (w *chunkWriter) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	err := w.fn(w.buf)
	w.buf = w.buf[:0]
	return err
}

func streamFile(ctx context.Context, api downloader.Client, loc tg.InputFileLocationClass, chunkSize int, fn func([]byte) error) error {
	w := newChunkWriter(chunkSize, fn)
	if _, err := downloader.NewDownloader().WithPartSize(filePartSize).Download(api, loc).Stream(ctx, w); err != nil {
		return errors.Wrap(err, "download")
	}
	return w.flush()
}

func downloadThumb(ctx context.Context, api downloader.Client, doc *tg.Document, thumbType string) ([]byte, error) {
	loc := doc.AsInputDocumentFileLocation()
	loc.ThumbSize = thumbType
	var buf bytes.Buffer
	if _, err := downloader.NewDownloader().Download(api, loc).Stream(ctx, &buf); err != nil {
		return nil, errors.Wrap(err, "download thumbnail")
	}
	return buf.Bytes(), nil
}
