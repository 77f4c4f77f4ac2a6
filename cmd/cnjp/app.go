package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cnjp_news/internal/archive"
	"cnjp_news/internal/classify"
	"cnjp_news/internal/config"
	"cnjp_news/internal/fetcher"
	"cnjp_news/internal/homefeed"
	"cnjp_news/internal/livestream"
	"cnjp_news/internal/model"
	"cnjp_news/internal/notify"
	"cnjp_news/internal/objectstore"
	"cnjp_news/internal/pipeline"
	"cnjp_news/internal/record"
	"cnjp_news/internal/storage"
	"cnjp_news/internal/translate"
)

const fetchTimeout = 30 * time.Second

// app holds the configuration and the shared resources of one command.
type app struct {
	cfg *config.Config
	log *slog.Logger
	db  storage.Storage
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, log: newLogger(cfg.LogLevel)}

	if cfg.DatabasePath != "" {
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data directory %s: %w", dir, err)
			}
		}
		db, err := storage.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
		}
		a.db = db
	}
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) archive() *archive.Store {
	return archive.NewStore(a.cfg.ArchiveDir, a.log)
}

func (a *app) translator() translate.Translator {
	if !a.cfg.Translate.Enabled {
		return translate.Noop{}
	}
	return translate.New(a.cfg.Translate.Endpoint, a.cfg.Translate.Timeout)
}

func (a *app) runner() *pipeline.Runner {
	builder := record.NewBuilder(a.translator(), classify.New(a.cfg.Categories), record.Options{
		SourceLang: a.cfg.Translate.SourceLang,
		TargetLang: a.cfg.Translate.TargetLang,
		TCLang:     a.cfg.Translate.TCLang,
	})

	r := pipeline.New(pipeline.Config{
		Sources:      a.cfg.Sources,
		HomeFeedPath: a.cfg.HomeFeedPath,
		WindowDays:   a.cfg.WindowDays,
		HomeCap:      a.cfg.HomeCap,
		Workers:      a.cfg.Translate.Workers,
		LockTTL:      a.cfg.LockTTL,
	}, fetcher.New(&http.Client{Timeout: fetchTimeout}), builder, a.archive(), a.log)

	if a.db != nil {
		r.SetLedger(a.db)
	}
	return r
}

// notifier returns nil when Telegram is not configured or cannot be reached.
// Notifications are optional, so a failing bot never stops a harvest.
func (a *app) notifier() *notify.Telegram {
	if a.cfg.TelegramBotToken == "" || a.cfg.TelegramChatID == 0 {
		return nil
	}

	opts := notify.Options{
		ChatID:      a.cfg.TelegramChatID,
		Job:         pipeline.JobNews,
		APIEndpoint: a.cfg.TelegramAPIEndpoint,
		Home: notify.HomeReaderFunc(func() ([]model.NewsItem, error) {
			feed, err := homefeed.Read(a.cfg.HomeFeedPath)
			return feed.News, err
		}),
	}
	if a.db != nil {
		opts.Runs = a.db
	}

	n, err := notify.New(a.cfg.TelegramBotToken, opts, a.log)
	if err != nil {
		a.log.Warn("telegram unavailable, continuing without notifications", "error", err)
		return nil
	}
	return n
}

func (a *app) streamJob(ctx context.Context) (*livestream.Job, error) {
	if a.cfg.YouTubeAPIKey == "" {
		return nil, fmt.Errorf("YOUTUBE_API_KEY is required for the stream job")
	}
	yt, err := livestream.NewYouTube(ctx, a.cfg.YouTubeAPIKey)
	if err != nil {
		return nil, err
	}

	job := livestream.NewJob(yt, a.cfg.Streams, a.cfg.StreamsOutput, a.log)
	if a.cfg.R2.Configured() {
		r2 := objectstore.NewR2(a.cfg.R2.AccountID, a.cfg.R2.AccessKeyID, a.cfg.R2.SecretAccessKey)
		job.SetUploader(r2, a.cfg.R2.Bucket, filepath.Base(a.cfg.StreamsOutput))
	} else {
		a.log.Info("R2 credentials not configured, skipping upload")
	}
	return job, nil
}
