package models

import "time"

// VideoRecord is the metadata view of a video message. Nullable fields are
// pointers so unknown values encode as JSON null.
type VideoRecord struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Size            *int64    `json:"size"`
	Duration        *float64  `json:"duration"`
	MimeType        *string   `json:"mime_type"`
	ThumbnailExists bool      `json:"thumbnail_exists"`
	Date            string    `json:"date"`
	Channel         string    `json:"channel,omitempty"`
	Timestamp       time.Time `json:"-"`
}

type VideoDetail struct {
	VideoRecord
	DirectURL    string `json:"direct_url"`
	DownloadURL  string `json:"download_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type VideoPage struct {
	Channel      string        `json:"channel"`
	Videos       []VideoRecord `json:"videos"`
	NextOffsetID int           `json:"next_offset_id"`
}

type Swipe struct {
	Channel string `json:"channel"`
	Current int    `json:"current"`
	Prev    *int   `json:"prev"`
	Next    *int   `json:"next"`
}

type SearchResult struct {
	Channel string        `json:"channel,omitempty"`
	Query   string        `json:"query"`
	Results []VideoRecord `json:"results"`
}

type RecentResult struct {
	Results []VideoRecord `json:"results"`
}

type ChannelStats struct {
	RecentScanned int `json:"recent_scanned"`
	VideosFound   int `json:"videos_found"`
}

type Health struct {
	OK       bool     `json:"ok"`
	Channels []string `json:"channels"`
}

type ChannelList struct {
	Channels []string `json:"channels"`
}

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	BuiltAt string `json:"built_at"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
