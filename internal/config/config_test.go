package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"cnjp_news/internal/classify"
	"cnjp_news/internal/model"
)

var envKeys = []string{
	"ARCHIVE_DIR", "HOME_FEED_PATH", "WINDOW_DAYS", "HOME_CAP", "RUN_INTERVAL",
	"DATABASE_PATH", "LOCK_TTL", "LOG_LEVEL", "CONFIG_PATH",
	"TRANSLATE_ENABLED", "TRANSLATE_ENDPOINT", "TRANSLATE_TIMEOUT", "TRANSLATE_WORKERS",
	"TRANSLATE_SOURCE", "TRANSLATE_TARGET", "TRANSLATE_TC_TARGET",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "TELEGRAM_API_ENDPOINT", "YOUTUBE_API_KEY", "STREAMS_OUTPUT",
	"CLOUDFLARE_ACCOUNT_ID", "CLOUDFLARE_R2_ACCESS_KEY_ID", "CLOUDFLARE_R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME",
}

const sampleYAML = `
sources:
  - name: Yahoo
    url: https://news.yahoo.co.jp/rss/ranking/comment/all.xml
    limit: 15
  - name: Google News
    url: https://news.google.com/rss?hl=ja&gl=JP&ceid=JP:ja
    strip_suffix: true
    headers:
      Accept-Language: ja
categories:
  - key: sports
    keywords: [大谷, MLB]
streams:
  - id: nhk
    display_name: NHK
    channel_id: UC123
    channel_name: NHK News
    keywords: [ニュース, live]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfgPath := writeConfig(t, sampleYAML)

	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name: "defaults applied",
			env:  map[string]string{"CONFIG_PATH": cfgPath},
			want: &Config{
				ArchiveDir:   "./public/archive",
				HomeFeedPath: "./public/data.json",
				WindowDays:   30,
				HomeCap:      100,
				Interval:     30 * time.Minute,
				LockTTL:      15 * time.Minute,
				LogLevel:     "info",
				ConfigPath:   cfgPath,
				Translate: Translate{
					Enabled:    true,
					Timeout:    10 * time.Second,
					Workers:    4,
					SourceLang: "auto",
					TargetLang: "zh-CN",
				},
				StreamsOutput: "./public/live_data.json",
				R2:            R2{Bucket: "cnjp-data"},
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"CONFIG_PATH":                     cfgPath,
				"ARCHIVE_DIR":                     "/srv/archive",
				"HOME_FEED_PATH":                  "/srv/data.json",
				"WINDOW_DAYS":                     "7",
				"HOME_CAP":                        "50",
				"RUN_INTERVAL":                    "1h",
				"DATABASE_PATH":                   "/srv/cnjp.db",
				"LOCK_TTL":                        "5m",
				"LOG_LEVEL":                       "debug",
				"TRANSLATE_ENABLED":               "false",
				"TRANSLATE_ENDPOINT":              "http://localhost:9000",
				"TRANSLATE_TIMEOUT":               "3s",
				"TRANSLATE_WORKERS":               "8",
				"TRANSLATE_SOURCE":                "ja",
				"TRANSLATE_TARGET":                "zh-CN",
				"TRANSLATE_TC_TARGET":             "zh-TW",
				"TELEGRAM_BOT_TOKEN":              "tok",
				"TELEGRAM_CHAT_ID":                "-100123",
				"YOUTUBE_API_KEY":                 "yt",
				"STREAMS_OUTPUT":                  "/srv/live.json",
				"CLOUDFLARE_ACCOUNT_ID":           "acc",
				"CLOUDFLARE_R2_ACCESS_KEY_ID":     "key",
				"CLOUDFLARE_R2_SECRET_ACCESS_KEY": "secret",
				"R2_BUCKET_NAME":                  "bucket",
			},
			want: &Config{
				ArchiveDir:   "/srv/archive",
				HomeFeedPath: "/srv/data.json",
				WindowDays:   7,
				HomeCap:      50,
				Interval:     time.Hour,
				DatabasePath: "/srv/cnjp.db",
				LockTTL:      5 * time.Minute,
				LogLevel:     "debug",
				ConfigPath:   cfgPath,
				Translate: Translate{
					Enabled:    false,
					Endpoint:   "http://localhost:9000",
					Timeout:    3 * time.Second,
					Workers:    8,
					SourceLang: "ja",
					TargetLang: "zh-CN",
					TCLang:     "zh-TW",
				},
				TelegramBotToken: "tok",
				TelegramChatID:   -100123,
				YouTubeAPIKey:    "yt",
				StreamsOutput:    "/srv/live.json",
				R2:               R2{AccountID: "acc", AccessKeyID: "key", SecretAccessKey: "secret", Bucket: "bucket"},
			},
		},
		{
			name:    "invalid window",
			env:     map[string]string{"CONFIG_PATH": cfgPath, "WINDOW_DAYS": "0"},
			wantErr: true,
		},
		{
			name:    "invalid cap",
			env:     map[string]string{"CONFIG_PATH": cfgPath, "HOME_CAP": "many"},
			wantErr: true,
		},
		{
			name:    "invalid chat id",
			env:     map[string]string{"CONFIG_PATH": cfgPath, "TELEGRAM_CHAT_ID": "abc"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"CONFIG_PATH": cfgPath, "LOCK_TTL": "soon"},
			wantErr: true,
		},
		{
			name:    "explicit config path missing",
			env:     map[string]string{"CONFIG_PATH": filepath.Join(t.TempDir(), "nope.yaml")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			opts := cmpopts.IgnoreFields(Config{}, "Sources", "Categories", "Streams")
			if diff := cmp.Diff(tt.want, got, opts); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
			if len(got.Sources) != 2 || len(got.Categories) != 1 || len(got.Streams) != 1 {
				t.Errorf("file sections not loaded: %d sources, %d categories, %d streams",
					len(got.Sources), len(got.Categories), len(got.Streams))
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	f, err := LoadFile(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want := &File{
		Sources: []model.Source{
			{Name: "Yahoo", URL: "https://news.yahoo.co.jp/rss/ranking/comment/all.xml", Limit: 15},
			{
				Name:        "Google News",
				URL:         "https://news.google.com/rss?hl=ja&gl=JP&ceid=JP:ja",
				StripSuffix: true,
				Headers:     map[string]string{"Accept-Language": "ja"},
			},
		},
		Categories: []classify.Rule{
			{Category: model.CategorySports, Keywords: []string{"大谷", "MLB"}},
		},
		Streams: []model.StreamChannel{
			{ID: "nhk", DisplayName: "NHK", ChannelID: "UC123", ChannelName: "NHK News", Keywords: []string{"ニュース", "live"}},
		},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "sources: [::"},
		{name: "source without url", body: "sources:\n  - name: x\n"},
		{name: "duplicate source", body: "sources:\n  - {name: a, url: u}\n  - {name: a, url: v}\n"},
		{name: "negative limit", body: "sources:\n  - {name: a, url: u, limit: -1}\n"},
		{name: "category without key", body: "categories:\n  - keywords: [x]\n"},
		{name: "stream without channel", body: "streams:\n  - id: a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadDefaultCategories(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	t.Setenv("CONFIG_PATH", writeConfig(t, "sources:\n  - {name: a, url: u}\n"))

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(classify.DefaultRules(), got.Categories); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestR2Configured(t *testing.T) {
	if (R2{Bucket: "b"}).Configured() {
		t.Error("empty credentials reported as configured")
	}
	if !(R2{AccountID: "a", AccessKeyID: "k", SecretAccessKey: "s"}).Configured() {
		t.Error("full credentials reported as unconfigured")
	}
}
