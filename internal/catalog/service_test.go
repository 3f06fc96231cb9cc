package catalog_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/media1take/Telegram-hosting/internal/catalog"
	"github.com/media1take/Telegram-hosting/internal/catalog/catalogtest"
	"github.com/media1take/Telegram-hosting/pkg/models"
)

const (
	moviesID int64 = -1002530324145
	musicID  int64 = -1001234567890
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return epoch.Add(time.Duration(minutes) * time.Minute) }

func newService(t *testing.T, up *catalogtest.Upstream) *catalog.Service {
	t.Helper()
	channels, err := catalog.NewChannels([]catalog.Channel{
		{Alias: "movies", ID: moviesID},
		{Alias: "music", ID: musicID},
	}, "movies")
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	return catalog.NewService(channels, up, catalog.Options{})
}

func ids(recs []models.VideoRecord) []int {
	out := make([]int, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

// seedMovies stores ids 1..10 where odd ids are videos.
func seedMovies(up *catalogtest.Upstream) {
	for id := 1; id <= 10; id++ {
		if id%2 == 1 {
			up.Add(moviesID, catalogtest.Video(id, at(id), "Movie "+string(rune('A'+id))+".mp4", 5000))
		} else {
			up.Add(moviesID, catalogtest.Text(id, at(id)))
		}
	}
}

func TestListNextOffsetIsLastReturnedID(t *testing.T) {
	up := catalogtest.New()
	seedMovies(up)
	svc := newService(t, up)

	page, err := svc.List(context.Background(), "movies", 3, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]int{9, 7, 5}, ids(page.Videos)); diff != "" {
		t.Fatalf("videos mismatch (-want +got):\n%s", diff)
	}
	if page.NextOffsetID != 5 || page.Channel != "movies" {
		t.Fatalf("unexpected page %+v", page)
	}

	next, err := svc.List(context.Background(), "movies", 3, page.NextOffsetID)
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if diff := cmp.Diff([]int{3, 1}, ids(next.Videos)); diff != "" {
		t.Fatalf("second page mismatch (-want +got):\n%s", diff)
	}

	empty, err := svc.List(context.Background(), "movies", 3, 1)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty.Videos) != 0 || empty.NextOffsetID != 1 {
		t.Fatalf("expected empty page keeping offset 1, got %+v", empty)
	}
}

func TestListPagesThroughHistoryBatches(t *testing.T) {
	up := catalogtest.New()
	up.Add(moviesID, catalogtest.Video(3, at(3), "old.mp4", 10))
	for id := 4; id <= 260; id++ {
		up.Add(moviesID, catalogtest.Text(id, at(id)))
	}
	svc := newService(t, up)

	page, err := svc.List(context.Background(), "movies", 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]int{3}, ids(page.Videos)); diff != "" {
		t.Fatalf("videos mismatch (-want +got):\n%s", diff)
	}
	if history, _, _ := up.Counts(); history != 3 {
		t.Fatalf("expected 3 history pages, got %d", history)
	}
}

func TestListUnknownChannel(t *testing.T) {
	svc := newService(t, catalogtest.New())
	if _, err := svc.List(context.Background(), "sports", 10, 0); !errors.Is(err, catalog.ErrChannelNotFound) {
		t.Fatalf("expected channel not found, got %v", err)
	}
}

func TestRecentLimitsPerChannelAndSortsNewestFirst(t *testing.T) {
	up := catalogtest.New()
	seedMovies(up)
	up.Add(musicID,
		catalogtest.Video(100, at(8), "a.mp4", 1),
		catalogtest.Video(101, at(2), "b.mp4", 1),
		catalogtest.Video(102, at(20), "c.mp4", 1),
	)
	svc := newService(t, up)

	recs, err := svc.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	perChannel := map[string]int{}
	for i, r := range recs {
		perChannel[r.Channel]++
		if i > 0 && recs[i-1].Timestamp.Before(r.Timestamp) {
			t.Fatalf("results not sorted newest first at %d: %v", i, ids(recs))
		}
	}
	if perChannel["movies"] != 2 || perChannel["music"] != 2 {
		t.Fatalf("expected two per channel, got %v", perChannel)
	}
	if diff := cmp.Diff([]int{102, 9, 7, 101}, ids(recs)); diff != "" {
		t.Fatalf("merged order mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelTaggingDoesNotLeakIntoCache(t *testing.T) {
	up := catalogtest.New()
	seedMovies(up)
	svc := newService(t, up)

	if _, err := svc.Recent(context.Background(), 5); err != nil {
		t.Fatalf("recent: %v", err)
	}
	page, err := svc.List(context.Background(), "movies", 5, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, r := range page.Videos {
		if r.Channel != "" {
			t.Fatalf("cached record was mutated with channel %q", r.Channel)
		}
	}
}

func TestSwipeFindsNearestNeighbors(t *testing.T) {
	up := catalogtest.New()
	seedMovies(up)
	svc := newService(t, up)

	got, err := svc.Swipe(context.Background(), "movies", 5)
	if err != nil {
		t.Fatalf("swipe: %v", err)
	}
	if got.Prev == nil || *got.Prev != 3 || got.Next == nil || *got.Next != 7 {
		t.Fatalf("expected prev 3 and next 7, got %+v", got)
	}

	edge, err := svc.Swipe(context.Background(), "movies", 9)
	if err != nil {
		t.Fatalf("swipe edge: %v", err)
	}
	if edge.Next != nil || edge.Prev == nil || *edge.Prev != 7 {
		t.Fatalf("expected only prev at newest edge, got %+v", edge)
	}

	first, err := svc.Swipe(context.Background(), "movies", 1)
	if err != nil {
		t.Fatalf("swipe first: %v", err)
	}
	if first.Prev != nil || first.Current != 1 {
		t.Fatalf("expected no prev for oldest video, got %+v", first)
	}
}

func TestSwipeRespectsScanWindow(t *testing.T) {
	up := catalogtest.New()
	up.Add(moviesID, catalogtest.Video(1, at(1), "a.mp4", 1))
	for id := 2; id <= 80; id++ {
		up.Add(moviesID, catalogtest.Text(id, at(id)))
	}
	svc := newService(t, up)

	got, err := svc.Swipe(context.Background(), "movies", 80)
	if err != nil {
		t.Fatalf("swipe: %v", err)
	}
	if got.Prev != nil {
		t.Fatalf("video beyond the 50 message window must not be found, got %d", *got.Prev)
	}
}

func TestSearchMatchesFileNameCaseInsensitive(t *testing.T) {
	up := catalogtest.New()
	up.Add(moviesID,
		catalogtest.Video(1, at(1), "The.Matrix.1999.mkv", 1),
		catalogtest.Video(2, at(2), "matrix-reloaded.mp4", 1),
		catalogtest.Video(3, at(3), "", 1),
		catalogtest.Video(4, at(4), "Inception.mp4", 1),
	)
	svc := newService(t, up)

	recs, err := svc.Search(context.Background(), "movies", "MATRIX", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if diff := cmp.Diff([]int{2, 1}, ids(recs)); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}

	limited, err := svc.Search(context.Background(), "movies", "matrix", 1)
	if err != nil {
		t.Fatalf("search limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit honored, got %v", ids(limited))
	}

	// The derived title "Video 3" is not a file name.
	if none, _ := svc.Search(context.Background(), "movies", "video 3", 10); len(none) != 0 {
		t.Fatalf("expected no match on derived title, got %v", ids(none))
	}
}

func TestSearchAll(t *testing.T) {
	up := catalogtest.New()
	up.Add(moviesID, catalogtest.Video(1, at(1), "live-concert.mp4", 1), catalogtest.Video(2, at(50), "live.mp4", 1))
	up.Add(musicID, catalogtest.Video(10, at(10), "LIVE set.mp4", 1), catalogtest.Video(11, at(11), "studio.mp4", 1))
	svc := newService(t, up)

	recs, err := svc.SearchAll(context.Background(), "live", nil, 5)
	if err != nil {
		t.Fatalf("search all: %v", err)
	}
	if diff := cmp.Diff([]int{2, 10, 1}, ids(recs)); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if recs[1].Channel != "music" {
		t.Fatalf("expected channel tag, got %q", recs[1].Channel)
	}

	only, err := svc.SearchAll(context.Background(), "live", []string{"music", "nope"}, 5)
	if err != nil || len(only) != 1 || only[0].Channel != "music" {
		t.Fatalf("expected music only, got %v %v", only, err)
	}

	_, err = svc.SearchAll(context.Background(), "live", []string{"nope"}, 5)
	if !errors.Is(err, catalog.ErrNoValidChannels) || catalog.ErrorCategory(err) != catalog.ErrorCategoryNotFound {
		t.Fatalf("expected no valid channels, got %v", err)
	}
}

func TestStatsCountsRecentWindow(t *testing.T) {
	up := catalogtest.New()
	seedMovies(up)
	svc := newService(t, up)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := map[string]models.ChannelStats{
		"movies": {RecentScanned: 10, VideosFound: 5},
		"music":  {},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestVideoLookup(t *testing.T) {
	up := catalogtest.New()
	seedMovies(up)
	svc := newService(t, up)

	v, err := svc.Video(context.Background(), "movies", 3)
	if err != nil {
		t.Fatalf("video: %v", err)
	}
	if v.Record.ID != 3 || v.Channel.Alias != "movies" {
		t.Fatalf("unexpected video %+v", v)
	}
	for _, id := range []int{2, 999} {
		if _, err := svc.Video(context.Background(), "movies", id); !errors.Is(err, catalog.ErrVideoNotFound) {
			t.Fatalf("id %d: expected video not found, got %v", id, err)
		}
	}
}

func TestThumbnailFetchedOnce(t *testing.T) {
	up := catalogtest.New()
	seedMovies(up)
	svc := newService(t, up)

	first, err := svc.Thumbnail(context.Background(), "movies", 3)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	second, err := svc.Thumbnail(context.Background(), "movies", 3)
	if err != nil {
		t.Fatalf("thumbnail again: %v", err)
	}
	if string(first) != "jpeg:m" || string(second) != string(first) {
		t.Fatalf("unexpected blobs %q %q", first, second)
	}
	if _, message, thumbnail := up.Counts(); message != 1 || thumbnail != 1 {
		t.Fatalf("expected one upstream fetch, got message=%d thumbnail=%d", message, thumbnail)
	}
}

func TestThumbnailConcurrentCallersShareFetch(t *testing.T) {
	up := catalogtest.New()
	seedMovies(up)
	up.ThumbnailDelay = 20 * time.Millisecond
	svc := newService(t, up)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Thumbnail(context.Background(), "movies", 5); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("thumbnail: %v", err)
	}
	if _, _, thumbnail := up.Counts(); thumbnail != 1 {
		t.Fatalf("expected a single upstream thumbnail fetch, got %d", thumbnail)
	}
}

func TestThumbnailErrors(t *testing.T) {
	up := catalogtest.New()
	doc := catalogtest.Video(1, at(1), "doc.mkv", 1)
	doc.Media.NativeVideo = false
	bare := catalogtest.Video(2, at(2), "bare.mp4", 1)
	bare.Media.Thumbs = nil
	up.Add(moviesID, doc, bare, catalogtest.Text(3, at(3)))
	svc := newService(t, up)

	for id, want := range map[int]error{1: catalog.ErrThumbnailUnavailable, 2: catalog.ErrThumbnailUnavailable, 3: catalog.ErrVideoNotFound} {
		_, err := svc.Thumbnail(context.Background(), "movies", id)
		if !errors.Is(err, want) {
			t.Fatalf("id %d: expected %v, got %v", id, want, err)
		}
	}
	if _, _, thumbnail := up.Counts(); thumbnail != 0 {
		t.Fatalf("expected no thumbnail downloads, got %d", thumbnail)
	}
}

func TestPlaylist(t *testing.T) {
	up := catalogtest.New()
	svc := newService(t, up)

	empty, err := svc.Playlist(context.Background(), "movies", 20)
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if empty != "#EXTM3U" {
		t.Fatalf("expected bare header, got %q", empty)
	}

	noDuration := catalogtest.Video(2, at(2), "", 1)
	noDuration.Media.HasDuration = false
	up.Add(moviesID, catalogtest.Video(1, at(1), "intro.mp4", 1), noDuration, catalogtest.Text(3, at(3)))

	got, err := svc.Playlist(context.Background(), "movies", 20)
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	want := strings.Join([]string{
		"#EXTM3U",
		"#EXTINF:-1,Video 2",
		"/stream/2?channel=movies",
		"#EXTINF:61,intro.mp4",
		"/stream/1?channel=movies",
	}, "\n")
	if got != want {
		t.Fatalf("playlist mismatch:\nwant %q\ngot  %q", want, got)
	}

	window, err := svc.Playlist(context.Background(), "movies", 1)
	if err != nil {
		t.Fatalf("playlist window: %v", err)
	}
	if window != "#EXTM3U" {
		t.Fatalf("newest message is text, expected empty playlist, got %q", window)
	}
}

func TestUpstreamFailureIsCategorized(t *testing.T) {
	up := catalogtest.New()
	up.Err = errors.New("rpc error code 500: INTERNAL")
	svc := newService(t, up)

	_, err := svc.List(context.Background(), "movies", 5, 0)
	if catalog.ErrorCategory(err) != catalog.ErrorCategoryUpstream {
		t.Fatalf("expected upstream category, got %v (%s)", err, catalog.ErrorCategory(err))
	}
	if _, err := svc.Recent(context.Background(), 5); err == nil {
		t.Fatal("expected recent to fail when a channel fails")
	}
}

func TestOpenMediaFileDefaults(t *testing.T) {
	up := catalogtest.New()
	msg := catalogtest.Video(4, at(4), "", 5000)
	msg.Media.MimeType = ""
	msg.Media.NativeVideo = true
	msg.Media.Handle = catalogtest.File{Data: make([]byte, 5000)}
	up.Add(moviesID, msg)
	svc := newService(t, up)

	f, err := svc.Open(context.Background(), "movies", 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if f.FileName() != "video_4.mp4" || f.MimeType() != "video/mp4" {
		t.Fatalf("unexpected defaults %q %q", f.FileName(), f.MimeType())
	}
	if size, ok := f.Size(); !ok || size != 5000 {
		t.Fatalf("unexpected size %d %v", size, ok)
	}
	data, err := f.ReadRange(context.Background(), 4990, 100)
	if err != nil || len(data) != 10 {
		t.Fatalf("expected 10 bytes near EOF, got %d %v", len(data), err)
	}
}
