package catalog

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/media1take/Telegram-hosting/internal/cache"
	"github.com/media1take/Telegram-hosting/pkg/models"
)

const historyPageSize = 100

// ScanWindows bounds how many history messages each operation inspects.
type ScanWindows struct {
	List      int
	Recent    int
	Swipe     int
	Search    int
	SearchAll int
	Stats     int
}

func DefaultScanWindows() ScanWindows {
	return ScanWindows{List: 500, Recent: 100, Swipe: 50, Search: 700, SearchAll: 1000, Stats: 200}
}

func (w ScanWindows) withDefaults() ScanWindows {
	def := DefaultScanWindows()
	fill := func(v *int, fallback int) {
		if *v <= 0 {
			*v = fallback
		}
	}
	fill(&w.List, def.List)
	fill(&w.Recent, def.Recent)
	fill(&w.Swipe, def.Swipe)
	fill(&w.Search, def.Search)
	fill(&w.SearchAll, def.SearchAll)
	fill(&w.Stats, def.Stats)
	return w
}

type Options struct {
	Scan       ScanWindows
	Records    cache.Cache[models.VideoRecord]
	Thumbnails cache.Cache[[]byte]
	LogInfo    func(message string, args ...any)
	LogWarn    func(message string, args ...any)
}

type Service struct {
	channels *Channels
	upstream Upstream
	scan     ScanWindows
	records  cache.Cache[models.VideoRecord]
	thumbs   cache.Cache[[]byte]

	thumbFlight singleflight.Group

	LogInfo func(message string, args ...any)
	LogWarn func(message string, args ...any)
}

func NewService(channels *Channels, upstream Upstream, opts Options) *Service {
	s := &Service{
		channels: channels,
		upstream: upstream,
		scan:     opts.Scan.withDefaults(),
		records:  opts.Records,
		thumbs:   opts.Thumbnails,
		LogInfo:  opts.LogInfo,
		LogWarn:  opts.LogWarn,
	}
	if s.records == nil {
		s.records = cache.NewMemory[models.VideoRecord]()
	}
	if s.thumbs == nil {
		s.thumbs = cache.NewMemory[[]byte]()
	}
	return s
}

func (s *Service) Channels() *Channels { return s.channels }

func (s *Service) logInfo(message string, args ...any) {
	if s.LogInfo != nil {
		s.LogInfo(message, append([]any{"component", "catalog"}, args...)...)
	}
}

func (s *Service) logWarn(message string, args ...any) {
	if s.LogWarn != nil {
		s.LogWarn(message, append([]any{"component", "catalog"}, args...)...)
	}
}

// record returns the memoized metadata for msg. The returned value is a copy,
// so tagging it with a channel never touches the cached entry.
func (s *Service) record(ch Channel, msg *Message) models.VideoRecord {
	key := cache.Key{ChannelID: ch.ID, MessageID: msg.ID}
	if rec, ok := s.records.Get(key); ok {
		return rec
	}
	rec := NewVideoRecord(msg)
	s.records.Put(key, rec)
	return rec
}

// walk pages through up to window messages of history starting at q and
// calls visit for each one until it returns false. It reports how many
// messages were inspected.
func (s *Service) walk(ctx context.Context, ch Channel, q HistoryQuery, window int, visit func(*Message) bool) (int, error) {
	scanned := 0
	for scanned < window {
		page := q
		page.Limit = min(historyPageSize, window-scanned)
		msgs, err := s.upstream.History(ctx, ch, page)
		if err != nil {
			return scanned, upstreamFailure("history "+ch.Alias, err)
		}
		for i := range msgs {
			scanned++
			if !visit(&msgs[i]) {
				return scanned, nil
			}
		}
		if len(msgs) < page.Limit {
			return scanned, nil
		}
		last := msgs[len(msgs)-1].ID
		if q.Ascending {
			q.MinID = last
		} else {
			q.OffsetID = last
		}
	}
	return scanned, nil
}

// collect gathers up to limit video records from the newest window messages,
// keeping those accepted by match (nil accepts every video).
func (s *Service) collect(ctx context.Context, ch Channel, q HistoryQuery, window, limit int, match func(*Message) bool) ([]models.VideoRecord, error) {
	out := []models.VideoRecord{}
	if limit <= 0 {
		return out, nil
	}
	_, err := s.walk(ctx, ch, q, window, func(msg *Message) bool {
		if !IsVideo(msg) || (match != nil && !match(msg)) {
			return true
		}
		out = append(out, s.record(ch, msg))
		return len(out) < limit
	})
	return out, err
}

// List pages through a channel newest first. offsetID 0 starts at the newest
// message; the cursor for the next page is the last returned id.
func (s *Service) List(ctx context.Context, alias string, limit, offsetID int) (models.VideoPage, error) {
	ch, err := s.channels.Resolve(alias)
	if err != nil {
		return models.VideoPage{}, err
	}
	videos, err := s.collect(ctx, ch, HistoryQuery{OffsetID: offsetID}, s.scan.List, limit, nil)
	if err != nil {
		return models.VideoPage{}, err
	}
	next := offsetID
	if len(videos) > 0 {
		next = videos[len(videos)-1].ID
	}
	return models.VideoPage{Channel: alias, Videos: videos, NextOffsetID: next}, nil
}

// Recent returns up to limitPerChannel recent videos from every channel,
// tagged with their alias and merged newest first.
func (s *Service) Recent(ctx context.Context, limitPerChannel int) ([]models.VideoRecord, error) {
	return s.acrossChannels(ctx, s.channels.All(), s.scan.Recent, limitPerChannel, nil)
}

func (s *Service) acrossChannels(ctx context.Context, channels []Channel, window, limit int, match func(*Message) bool) ([]models.VideoRecord, error) {
	perChannel := make([][]models.VideoRecord, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range channels {
		g.Go(func() error {
			recs, err := s.collect(gctx, ch, HistoryQuery{}, window, limit, match)
			if err != nil {
				s.logWarn("channel scan failed", "operation", "aggregate", "channel", ch.Alias, "error", err.Error())
				return err
			}
			for j := range recs {
				recs[j].Channel = ch.Alias
			}
			perChannel[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := []models.VideoRecord{}
	for _, recs := range perChannel {
		merged = append(merged, recs...)
	}
	models.SortNewestFirst(merged)
	return merged, nil
}

// Swipe finds the nearest older and newer videos around msgID.
func (s *Service) Swipe(ctx context.Context, alias string, msgID int) (models.Swipe, error) {
	ch, err := s.channels.Resolve(alias)
	if err != nil {
		return models.Swipe{}, err
	}
	out := models.Swipe{Channel: alias, Current: msgID}

	older := HistoryQuery{OffsetID: msgID}
	if _, err := s.walk(ctx, ch, older, s.scan.Swipe, func(msg *Message) bool {
		if msg.ID < msgID && IsVideo(msg) {
			id := msg.ID
			out.Prev = &id
			return false
		}
		return true
	}); err != nil {
		return models.Swipe{}, err
	}

	newer := HistoryQuery{MinID: msgID, Ascending: true}
	if _, err := s.walk(ctx, ch, newer, s.scan.Swipe, func(msg *Message) bool {
		if msg.ID > msgID && IsVideo(msg) {
			id := msg.ID
			out.Next = &id
			return false
		}
		return true
	}); err != nil {
		return models.Swipe{}, err
	}
	return out, nil
}

func fileNameMatcher(query string) func(*Message) bool {
	needle := strings.ToLower(query)
	return func(msg *Message) bool {
		return strings.Contains(strings.ToLower(fileName(msg)), needle)
	}
}

// Search matches query case-insensitively against attachment file names.
func (s *Service) Search(ctx context.Context, alias, query string, limit int) ([]models.VideoRecord, error) {
	ch, err := s.channels.Resolve(alias)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, ch, HistoryQuery{}, s.scan.Search, limit, fileNameMatcher(query))
}

// SearchAll runs Search over the given aliases, or all channels when aliases
// is nil. Unknown aliases are dropped.
func (s *Service) SearchAll(ctx context.Context, query string, aliases []string, limitPerChannel int) ([]models.VideoRecord, error) {
	targets, err := s.channels.Select(aliases)
	if err != nil {
		return nil, err
	}
	return s.acrossChannels(ctx, targets, s.scan.SearchAll, limitPerChannel, fileNameMatcher(query))
}

// Stats counts videos among the most recent messages of every channel.
func (s *Service) Stats(ctx context.Context) (map[string]models.ChannelStats, error) {
	channels := s.channels.All()
	stats := make([]models.ChannelStats, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range channels {
		g.Go(func() error {
			videos := 0
			scanned, err := s.walk(gctx, ch, HistoryQuery{}, s.scan.Stats, func(msg *Message) bool {
				if IsVideo(msg) {
					videos++
				}
				return true
			})
			if err != nil {
				return err
			}
			stats[i] = models.ChannelStats{RecentScanned: scanned, VideosFound: videos}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]models.ChannelStats, len(channels))
	for i, ch := range channels {
		out[ch.Alias] = stats[i]
	}
	return out, nil
}

type Video struct {
	Channel Channel
	Message *Message
	Record  models.VideoRecord
}

func (s *Service) fetchVideo(ctx context.Context, ch Channel, id int) (*Message, error) {
	msg, err := s.upstream.Message(ctx, ch, id)
	if err != nil {
		return nil, upstreamFailure(fmt.Sprintf("get message %d", id), err)
	}
	if !IsVideo(msg) {
		return nil, notFound(ErrVideoNotFound)
	}
	return msg, nil
}

// Video looks up a single video message.
func (s *Service) Video(ctx context.Context, alias string, id int) (Video, error) {
	ch, err := s.channels.Resolve(alias)
	if err != nil {
		return Video{}, err
	}
	msg, err := s.fetchVideo(ctx, ch, id)
	if err != nil {
		return Video{}, err
	}
	return Video{Channel: ch, Message: msg, Record: s.record(ch, msg)}, nil
}

// Thumbnail returns the smallest preview of a native video. Concurrent
// requests for the same video share one upstream fetch, and the blob is
// cached afterwards.
func (s *Service) Thumbnail(ctx context.Context, alias string, id int) ([]byte, error) {
	ch, err := s.channels.Resolve(alias)
	if err != nil {
		return nil, err
	}
	key := cache.Key{ChannelID: ch.ID, MessageID: id}
	if blob, ok := s.thumbs.Get(key); ok {
		return blob, nil
	}

	// The fetch outlives the first caller so the others are not failed by
	// its disconnect.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.thumbFlight.Do(key.String(), func() (any, error) {
		if blob, ok := s.thumbs.Get(key); ok {
			return blob, nil
		}
		msg, err := s.fetchVideo(flightCtx, ch, id)
		if err != nil {
			return nil, err
		}
		if !msg.Media.NativeVideo || len(msg.Media.Thumbs) == 0 {
			return nil, notFound(ErrThumbnailUnavailable)
		}
		blob, err := s.upstream.Thumbnail(flightCtx, msg.Media, msg.Media.Thumbs[0])
		if err != nil {
			return nil, upstreamFailure(fmt.Sprintf("thumbnail %d", id), err)
		}
		s.thumbs.Put(key, blob)
		s.logInfo("thumbnail cached", "operation", "thumbnail", "channel", alias, "msg_id", id, "bytes", len(blob))
		return blob, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Playlist renders an extended M3U document for the videos among the newest
// limit messages of a channel.
func (s *Service) Playlist(ctx context.Context, alias string, limit int) (string, error) {
	ch, err := s.channels.Resolve(alias)
	if err != nil {
		return "", err
	}
	lines := []string{"#EXTM3U"}
	if limit > 0 {
		_, err = s.walk(ctx, ch, HistoryQuery{}, limit, func(msg *Message) bool {
			if IsVideo(msg) {
				rec := s.record(ch, msg)
				duration := -1
				if rec.Duration != nil && *rec.Duration != 0 {
					duration = int(*rec.Duration)
				}
				lines = append(lines,
					fmt.Sprintf("#EXTINF:%d,%s", duration, rec.Title),
					models.StreamURL(rec.ID, alias),
				)
			}
			return true
		})
		if err != nil {
			return "", err
		}
	}
	return strings.Join(lines, "\n"), nil
}
