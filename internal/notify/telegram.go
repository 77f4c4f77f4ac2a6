// Package notify sends headline digests to a Telegram chat and answers a
// few read-only commands about the published feed.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cnjp_news/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// HomeReader returns the currently published home feed.
type HomeReader interface {
	ReadHome() ([]model.NewsItem, error)
}

// HomeReaderFunc adapts a function to HomeReader.
type HomeReaderFunc func() ([]model.NewsItem, error)

// ReadHome calls f.
func (f HomeReaderFunc) ReadHome() ([]model.NewsItem, error) { return f() }

// RunLister lists recorded pipeline runs.
type RunLister interface {
	ListRuns(ctx context.Context, job string, limit int) ([]model.Run, error)
}

// Options configures a Telegram notifier.
type Options struct {
	ChatID int64
	// MaxItems caps the headlines in one digest; 0 means DefaultMaxItems.
	MaxItems int
	// Job is the ledger job reported by /runs.
	Job  string
	Home HomeReader
	Runs RunLister
	// APIEndpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server.
	APIEndpoint string
}

// DefaultMaxItems is the digest size used when Options.MaxItems is zero.
const DefaultMaxItems = 20

// Telegram posts digests to a single chat.
type Telegram struct {
	api  telegramAPI
	opts Options
	log  *slog.Logger
}

// New creates a Telegram notifier with the given bot token.
func New(token string, opts Options, log *slog.Logger) (*Telegram, error) {
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newWithAPI(api, opts, log), nil
}

func newWithAPI(api telegramAPI, opts Options, log *slog.Logger) *Telegram {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	return &Telegram{api: api, opts: opts, log: log}
}

// SendDigest posts the newly archived items of day. Nothing is sent for an
// empty list. Long digests are split across several messages.
func (t *Telegram) SendDigest(day string, items []model.NewsItem) error {
	if len(items) == 0 {
		return nil
	}
	for i, text := range FormatDigest(day, items, t.opts.MaxItems) {
		if err := t.send(t.opts.ChatID, text); err != nil {
			return fmt.Errorf("send digest part %d: %w", i+1, err)
		}
	}
	return nil
}

// Run serves chat commands until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != t.opts.ChatID {
				t.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			t.handleCommand(ctx, update.Message.Chat.ID, update.Message.Command(), update.Message.CommandArguments())
		}
	}
}

func (t *Telegram) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := t.api.Send(msg)
	return err
}

func (t *Telegram) reply(chatID int64, text string) {
	if err := t.send(chatID, text); err != nil {
		t.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (t *Telegram) handleCommand(ctx context.Context, chatID int64, cmd, args string) {
	args = strings.TrimSpace(args)
	t.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start", "help":
		t.reply(chatID, helpText)
	case "latest":
		t.handleLatest(chatID, args)
	case "runs":
		t.handleRuns(ctx, chatID)
	default:
		t.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

const helpText = `Commands:
/latest [n] - newest headlines from the home feed
/runs - recent pipeline runs`

func (t *Telegram) handleLatest(chatID int64, args string) {
	if t.opts.Home == nil {
		t.reply(chatID, "Home feed is not available.")
		return
	}
	n := 10
	if args != "" {
		v, err := strconv.Atoi(args)
		if err != nil || v <= 0 {
			t.reply(chatID, "Usage: /latest [n]")
			return
		}
		n = min(v, t.opts.MaxItems)
	}

	items, err := t.opts.Home.ReadHome()
	if err != nil {
		t.log.Error("read home feed", "error", err)
		t.reply(chatID, "Failed to read the home feed.")
		return
	}
	if len(items) == 0 {
		t.reply(chatID, "The home feed is empty.")
		return
	}
	for _, text := range FormatDigest("latest", items, n) {
		t.reply(chatID, text)
	}
}

func (t *Telegram) handleRuns(ctx context.Context, chatID int64) {
	if t.opts.Runs == nil {
		t.reply(chatID, "Run ledger is not configured.")
		return
	}
	runs, err := t.opts.Runs.ListRuns(ctx, t.opts.Job, 5)
	if err != nil {
		t.log.Error("list runs", "error", err)
		t.reply(chatID, "Failed to list runs.")
		return
	}
	t.reply(chatID, FormatRuns(runs))
}
