package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/media1take/Telegram-hosting/internal/catalog"
)

const (
	DefaultChunkSize   = 2 * 1024 * 1024
	DefaultRangeWindow = 2 * 1024 * 1024
)

const (
	KindRange    = "range"
	KindFull     = "full"
	KindDownload = "download"
)

var errEmptyRange = errors.New("upstream delivered no bytes for range")

// Source is a remote file that can be read by offset or streamed in chunks.
type Source interface {
	Size() (int64, bool)
	MimeType() string
	ReadRange(ctx context.Context, offset, length int64) ([]byte, error)
	Stream(ctx context.Context, chunkSize int, fn func([]byte) error) error
}

type Options struct {
	ChunkSize     int
	RangeWindow   int64
	BandwidthKBps int

	// OnFallback is called when a Range request is served as a full stream.
	OnFallback func(err error)
	// OnBytes reports body bytes written per response kind.
	OnBytes func(kind string, n int)
	LogWarn func(message string, args ...any)
}

type Streamer struct {
	opts Options
}

func New(opts Options) *Streamer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.RangeWindow <= 0 {
		opts.RangeWindow = DefaultRangeWindow
	}
	return &Streamer{opts: opts}
}

func (s *Streamer) logWarn(message string, args ...any) {
	if s.opts.LogWarn != nil {
		s.opts.LogWarn(message, append([]any{"component", "stream"}, args...)...)
	}
}

func (s *Streamer) countBytes(kind string, n int) {
	if s.opts.OnBytes != nil && n > 0 {
		s.opts.OnBytes(kind, n)
	}
}

// ServeInline answers a playback request. A Range header is honored when it
// can be; any parse or fetch failure falls back to the full stream. The
// returned error is non-nil only when nothing has been written yet.
func (s *Streamer) ServeInline(w http.ResponseWriter, r *http.Request, src Source) error {
	size, ok := src.Size()
	if !ok {
		return catalog.WrapCategorizedError(catalog.ErrorCategoryInternal, catalog.ErrUnknownSize)
	}
	mime := src.MimeType()

	if header := r.Header.Get("Range"); header != "" {
		err := s.serveRange(w, r, src, header, size, mime)
		if err == nil {
			return nil
		}
		s.logWarn("range handling failed, serving full stream", "range", header, "error", err.Error())
		if s.opts.OnFallback != nil {
			s.opts.OnFallback(err)
		}
	}

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Content-Type", mime)
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	s.pump(r.Context(), w, src, KindFull)
	return nil
}

// serveRange writes a 206 response or returns an error before writing
// anything. The declared range reflects the bytes actually delivered, which
// may be fewer than requested near end of file or beyond the range window.
func (s *Streamer) serveRange(w http.ResponseWriter, r *http.Request, src Source, header string, size int64, mime string) error {
	br, err := ParseRange(header, size, s.opts.RangeWindow)
	if err != nil {
		return err
	}
	// One 206 body never exceeds the window; Content-Range reports the
	// shorter span and the client asks for the rest.
	if br.Length() > s.opts.RangeWindow {
		br.End = br.Start + s.opts.RangeWindow - 1
	}
	data, err := src.ReadRange(r.Context(), br.Start, br.Length())
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errEmptyRange
	}
	if int64(len(data)) > br.Length() {
		data = data[:br.Length()]
	}
	actualEnd := br.Start + int64(len(data)) - 1

	limiter := newBandwidthLimiter(s.opts.BandwidthKBps)
	if err := limiter.WaitBytes(r.Context(), len(data)); err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.Start, actualEnd, size))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Content-Type", mime)
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusPartialContent)
	n, err := w.Write(data)
	s.countBytes(KindRange, n)
	if err != nil {
		s.logWarn("range write failed", "error", err.Error())
	}
	return nil
}

// ServeAttachment streams the whole file with a forced-download disposition.
func (s *Streamer) ServeAttachment(w http.ResponseWriter, r *http.Request, src Source, filename string) error {
	h := w.Header()
	h.Set("Content-Type", src.MimeType())
	h.Set("Content-Disposition", ContentDisposition(filename))
	if size, ok := src.Size(); ok {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	s.pump(r.Context(), w, src, KindDownload)
	return nil
}

// pump forwards chunks as they arrive until the source is exhausted, the
// client goes away or a write fails.
func (s *Streamer) pump(ctx context.Context, w http.ResponseWriter, src Source, kind string) {
	limiter := newBandwidthLimiter(s.opts.BandwidthKBps)
	flusher, _ := w.(http.Flusher)
	written := 0
	err := src.Stream(ctx, s.opts.ChunkSize, func(chunk []byte) error {
		if err := limiter.WaitBytes(ctx, len(chunk)); err != nil {
			return err
		}
		n, err := w.Write(chunk)
		written += n
		s.countBytes(kind, n)
		if err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		s.logWarn("stream aborted", "kind", kind, "written", written, "error", err.Error())
	}
}

// ContentDisposition renders an attachment header. Non-ASCII names also get
// an RFC 5987 filename* parameter.
func ContentDisposition(filename string) string {
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "").Replace(filename)
	value := `attachment; filename="` + quoted + `"`
	if !isASCII(filename) {
		value += "; filename*=UTF-8''" + url.PathEscape(filename)
	}
	return value
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
