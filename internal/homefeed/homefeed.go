// Package homefeed rebuilds the capped multi-day home page feed from the
// daily archives.
package homefeed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cnjp_news/internal/archive"
	"cnjp_news/internal/atomicfile"
	"cnjp_news/internal/jst"
	"cnjp_news/internal/model"
)

// DayLoader reads one day's archived items.
type DayLoader interface {
	Load(day string) ([]model.NewsItem, error)
}

// Aggregator derives the home feed from a trailing window of archives.
type Aggregator struct {
	src DayLoader
	log *slog.Logger
}

// New creates an Aggregator reading from src.
func New(src DayLoader, log *slog.Logger) *Aggregator {
	return &Aggregator{src: src, log: log}
}

// Rebuild walks windowDays days back from anchor's JST date, newest day first,
// and collects items whose link was not already collected until limit items
// are held. Each day is visited in publish-time order, newest first.
//
// The cap is applied greedily in scan order: once reached, older days are not
// scanned, even if they hold items published later than some collected ones.
// The collected set is finally ordered by publish time, newest first.
func (a *Aggregator) Rebuild(anchor time.Time, windowDays, limit int) []model.NewsItem {
	out := []model.NewsItem{}
	if limit <= 0 {
		return out
	}

	seen := make(map[string]bool)
	for _, day := range jst.Days(anchor, windowDays) {
		if len(out) >= limit {
			break
		}

		items, err := a.src.Load(day)
		if err != nil {
			a.log.Warn("skip unreadable archive", "day", day, "error", err)
			continue
		}

		dayItems := make([]model.NewsItem, len(items))
		copy(dayItems, items)
		archive.SortNewestFirst(dayItems)

		for _, it := range dayItems {
			if len(out) >= limit {
				break
			}
			if it.Link == "" || seen[it.Link] {
				continue
			}
			seen[it.Link] = true
			out = append(out, it)
		}
	}

	archive.SortNewestFirst(out)
	return out
}

// Write persists the home feed artifact atomically.
func Write(path string, items []model.NewsItem, now time.Time) error {
	if items == nil {
		items = []model.NewsItem{}
	}
	feed := model.HomeFeed{
		LastUpdated: now.In(jst.Zone).Format(time.RFC3339),
		News:        items,
	}
	if err := atomicfile.WriteJSON(path, feed); err != nil {
		return fmt.Errorf("persist home feed: %w", err)
	}
	return nil
}

// Read loads a previously written home feed artifact.
func Read(path string) (model.HomeFeed, error) {
	var feed model.HomeFeed
	data, err := os.ReadFile(path)
	if err != nil {
		return feed, fmt.Errorf("read home feed: %w", err)
	}
	if err := json.Unmarshal(data, &feed); err != nil {
		return feed, fmt.Errorf("decode home feed %s: %w", path, err)
	}
	return feed, nil
}
