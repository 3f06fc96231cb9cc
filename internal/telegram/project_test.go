package telegram

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gotd/td/tg"

	"github.com/media1take/Telegram-hosting/internal/catalog"
)

func TestNormalizeChannelID(t *testing.T) {
	cases := map[int64]int64{
		-1002530324145: 2530324145,
		-2530324145:    2530324145,
		2530324145:     2530324145,
	}
	for in, want := range cases {
		if got := NormalizeChannelID(in); got != want {
			t.Errorf("NormalizeChannelID(%d) = %d, want %d", in, got, want)
		}
	}
}

func videoMessage(id int, date time.Time) *tg.Message {
	return &tg.Message{
		ID:   id,
		Date: int(date.Unix()),
		Media: &tg.MessageMediaDocument{
			Document: &tg.Document{
				ID:       int64(id) * 10,
				MimeType: "video/mp4",
				Size:     5000,
				Attributes: []tg.DocumentAttributeClass{
					&tg.DocumentAttributeVideo{Duration: 61, W: 1280, H: 720},
					&tg.DocumentAttributeFilename{FileName: "trailer.mp4"},
				},
				Thumbs: []tg.PhotoSizeClass{
					&tg.PhotoSize{Type: "m", W: 320, H: 180, Size: 4096},
					&tg.PhotoStrippedSize{Type: "i", Bytes: []byte{1, 2, 3}},
					&tg.PhotoCachedSize{Type: "s", W: 90, H: 50, Bytes: []byte("tiny")},
				},
			},
		},
	}
}

func TestProjectMessage(t *testing.T) {
	date := time.Date(2024, 3, 9, 18, 4, 5, 0, time.UTC)
	got := projectMessage(videoMessage(42, date), 2530324145)

	if got.ID != 42 || got.ChannelID != 2530324145 || !got.Date.Equal(date) {
		t.Fatalf("unexpected header: %+v", got)
	}
	if got.Media == nil {
		t.Fatal("expected media")
	}
	want := &catalog.Media{
		NativeVideo: true,
		FileName:    "trailer.mp4",
		MimeType:    "video/mp4",
		Size:        5000,
		HasSize:     true,
		Duration:    61,
		HasDuration: true,
		Thumbs: []catalog.Thumb{
			{Type: "s", Width: 90, Height: 50, Size: 4, Inline: []byte("tiny")},
			{Type: "m", Width: 320, Height: 180, Size: 4096},
		},
	}
	if diff := cmp.Diff(want, got.Media, cmpopts.IgnoreFields(catalog.Media{}, "Handle")); diff != "" {
		t.Fatalf("media mismatch (-want +got):\n%s", diff)
	}
	if _, ok := documentOf(got.Media); !ok {
		t.Fatal("expected document handle")
	}
}

func TestProjectMessageRoundVideoIsNotNative(t *testing.T) {
	msg := &tg.Message{
		ID: 7,
		Media: &tg.MessageMediaDocument{
			Document: &tg.Document{
				MimeType:   "video/mp4",
				Attributes: []tg.DocumentAttributeClass{&tg.DocumentAttributeVideo{RoundMessage: true, Duration: 5}},
			},
		},
	}
	got := projectMessage(msg, 1)
	if got.Media == nil || got.Media.NativeVideo || got.Media.HasDuration {
		t.Fatalf("round message should not be native video: %+v", got.Media)
	}
	if !catalog.IsVideo(&got) {
		t.Fatal("video mime should still qualify")
	}
}

func TestProjectMessagesKeepsServiceDropsEmpty(t *testing.T) {
	classes := []tg.MessageClass{
		&tg.MessageService{ID: 3, Date: 1700000000},
		&tg.MessageEmpty{ID: 4},
		&tg.Message{ID: 5, Message: "hello"},
		&tg.Message{ID: 6, Media: &tg.MessageMediaDocument{Document: &tg.DocumentEmpty{ID: 1}}},
	}
	got := projectMessages(classes, 9)
	if len(got) != 3 || got[0].ID != 3 || got[1].ID != 5 || got[2].ID != 6 {
		t.Fatalf("unexpected projection: %+v", got)
	}
	for _, m := range got {
		if m.Media != nil {
			t.Fatalf("message %d should carry no media", m.ID)
		}
	}
	if got[0].ChannelID != 9 || got[0].Date.Unix() != 1700000000 {
		t.Fatalf("service message not projected: %+v", got[0])
	}
}

func TestProjectThumbsProgressiveUsesLargestSize(t *testing.T) {
	got := projectThumbs([]tg.PhotoSizeClass{
		&tg.PhotoSizeProgressive{Type: "y", W: 800, H: 450, Sizes: []int{1000, 5000, 12000}},
	})
	if len(got) != 1 || got[0].Size != 12000 {
		t.Fatalf("unexpected thumbs: %+v", got)
	}
}
