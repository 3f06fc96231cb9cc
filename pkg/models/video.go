package models

import (
	"fmt"
	"net/url"
	"sort"
)

func StreamURL(id int, channel string) string {
	return fmt.Sprintf("/stream/%d?channel=%s", id, url.QueryEscape(channel))
}

func DownloadURL(id int, channel string) string {
	return fmt.Sprintf("/download/%d?channel=%s", id, url.QueryEscape(channel))
}

func ThumbnailURL(id int, channel string) string {
	return fmt.Sprintf("/thumbnail/%d?channel=%s", id, url.QueryEscape(channel))
}

func NewVideoDetail(rec VideoRecord, channel string) VideoDetail {
	rec.Channel = channel
	return VideoDetail{
		VideoRecord:  rec,
		DirectURL:    StreamURL(rec.ID, channel),
		DownloadURL:  DownloadURL(rec.ID, channel),
		ThumbnailURL: ThumbnailURL(rec.ID, channel),
	}
}

// SortNewestFirst orders records by timestamp descending. Equal timestamps
// fall back to the higher message id first.
func SortNewestFirst(records []VideoRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
}
