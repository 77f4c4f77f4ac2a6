package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"cnjp_news/internal/jst"
	"cnjp_news/internal/model"
)

// maxMessageRunes keeps messages under Telegram's 4096 character limit.
const maxMessageRunes = 4000

// FormatItem renders a single headline.
func FormatItem(item model.NewsItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", item.Category, item.Title)
	if item.OriginTitle != "" && item.OriginTitle != item.Title {
		b.WriteString(item.OriginTitle)
		b.WriteString("\n")
	}
	meta := make([]string, 0, 2)
	if item.Origin != "" {
		meta = append(meta, item.Origin)
	}
	if item.DisplayTime != "" {
		meta = append(meta, item.DisplayTime)
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " · "))
		b.WriteString("\n")
	}
	b.WriteString(item.Link)
	return b.String()
}

// FormatDigest renders up to limit items under a header and splits the result
// into messages that fit the Telegram size limit.
func FormatDigest(day string, items []model.NewsItem, limit int) []string {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if len(items) == 0 {
		return nil
	}

	var msgs []string
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d headlines", day, len(items))

	for _, item := range items {
		entry := FormatItem(item)
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(entry)+2 > maxMessageRunes {
			msgs = append(msgs, b.String())
			b.Reset()
		} else {
			b.WriteString("\n\n")
		}
		b.WriteString(entry)
	}
	return append(msgs, b.String())
}

// FormatRuns renders recent ledger entries.
func FormatRuns(runs []model.Run) string {
	if len(runs) == 0 {
		return "No runs recorded yet."
	}
	var b strings.Builder
	b.WriteString("Recent runs:\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "\n%s JST [%s] fetched %d, added %d, home %d",
			r.StartedAt.In(jst.Zone).Format("01-02 15:04"), statusLabel(r.Status), r.Fetched, r.Added, r.HomeCount)
		if r.Error != "" {
			fmt.Fprintf(&b, "\n   %s", r.Error)
		}
	}
	return b.String()
}

func statusLabel(s model.RunStatus) string {
	if s == "" {
		return "running"
	}
	return string(s)
}
