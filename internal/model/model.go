// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category is a topic tag assigned to a news item.
type Category string

// Supported categories. Other is the catch-all.
const (
	CategoryPolitics      Category = "politics"
	CategoryMilitary      Category = "military"
	CategoryEconomy       Category = "economy"
	CategorySociety       Category = "society"
	CategoryEntertainment Category = "entertainment"
	CategorySports        Category = "sports"
	CategoryOther         Category = "other"
)

// Source is an upstream news feed.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// Limit caps the entries taken from the top of the feed; 0 keeps all.
	Limit int `yaml:"limit"`
	// StripSuffix moves a trailing " - Media" from the title into the origin.
	StripSuffix bool              `yaml:"strip_suffix"`
	Headers     map[string]string `yaml:"headers"`
}

// NewsItem is the canonical archived record of one headline.
// Field order defines the JSON key order of persisted files.
type NewsItem struct {
	Title       string   `json:"title"`
	TitleTC     string   `json:"title_tc,omitempty"`
	OriginTitle string   `json:"title_ja"`
	Origin      string   `json:"origin"`
	Link        string   `json:"link"`
	Image       string   `json:"image"`
	Category    Category `json:"category"`
	PublishedAt UnixTime `json:"timestamp"`
	DisplayTime string   `json:"time_str"`
}

// UnixTime is a UTC instant serialized as Unix seconds.
type UnixTime struct {
	time.Time
}

// NewUnixTime truncates t to whole seconds in UTC.
func NewUnixTime(t time.Time) UnixTime {
	return UnixTime{Time: t.UTC().Truncate(time.Second)}
}

// MarshalJSON implements json.Marshaler.
func (u UnixTime) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("0"), nil
	}
	return json.Marshal(u.Unix())
}

// UnmarshalJSON implements json.Unmarshaler. Fractional seconds are accepted.
func (u *UnixTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		u.Time = time.Time{}
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("decode unix time: %w", err)
	}
	if secs == 0 {
		u.Time = time.Time{}
		return nil
	}
	u.Time = time.Unix(int64(secs), 0).UTC()
	return nil
}

// HomeFeed is the published home page artifact.
type HomeFeed struct {
	LastUpdated string     `json:"last_updated"`
	News        []NewsItem `json:"news"`
}

// RunStatus is the final state of a recorded run.
type RunStatus string

// Run statuses.
const (
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
	RunAborted RunStatus = "aborted"
)

// Run is a ledger entry describing one pipeline execution.
type Run struct {
	ID         string
	Job        string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	Fetched    int
	Added      int
	HomeCount  int
	Error      string
}

// StreamChannel is a YouTube channel watched for live broadcasts.
type StreamChannel struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	ChannelID   string   `yaml:"channel_id"`
	ChannelName string   `yaml:"channel_name"`
	Keywords    []string `yaml:"keywords"`
}

// Stream is the live status of one configured channel.
type Stream struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	ChannelName string  `json:"channelName"`
	IsLive      bool    `json:"isLive"`
	VideoID     *string `json:"videoId"`
	Title       *string `json:"title"`
	MatchScore  int     `json:"matchScore"`
}

// StreamSnapshot is the published live-stream artifact.
type StreamSnapshot struct {
	LastUpdated string   `json:"lastUpdated"`
	Streams     []Stream `json:"streams"`
}
