// Package archive persists one JSON list of news items per JST calendar day.
//
// A day's file only ever grows: merging appends items whose link is not yet
// present and never rewrites an existing record. Each day is stored sorted by
// publish time, newest first.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cnjp_news/internal/atomicfile"
	"cnjp_news/internal/jst"
	"cnjp_news/internal/model"
)

// ErrCorrupt is returned by Load when a day file exists but cannot be decoded.
var ErrCorrupt = errors.New("corrupt archive file")

const ext = ".json"

// Store reads and writes daily archive files under a directory.
// It assumes a single writer; Merge and Persist form one read-modify-write
// that callers must not interleave across processes.
type Store struct {
	dir string
	log *slog.Logger
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, log *slog.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// Dir returns the archive directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path of a day key.
func (s *Store) Path(day string) string {
	return filepath.Join(s.dir, day+ext)
}

// Load reads the items stored for day. A missing file yields an empty list.
// An undecodable file yields an empty list and an error wrapping ErrCorrupt.
func (s *Store) Load(day string) ([]model.NewsItem, error) {
	if err := validDay(day); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(day))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.NewsItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", day, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []model.NewsItem{}, nil
	}

	var items []model.NewsItem
	if err := json.Unmarshal(data, &items); err != nil {
		return []model.NewsItem{}, fmt.Errorf("%w %s: %v", ErrCorrupt, day, err)
	}
	if items == nil {
		items = []model.NewsItem{}
	}
	return items, nil
}

// Merge loads day and appends every item whose link is unseen, keeping the
// first occurrence of each link. Existing records are never modified.
// The result is sorted by publish time, newest first, and is not persisted.
func (s *Store) Merge(day string, items []model.NewsItem) ([]model.NewsItem, int, error) {
	existing, err := s.Load(day)
	if errors.Is(err, ErrCorrupt) {
		s.log.Warn("archive unreadable, starting empty", "day", day, "error", err)
		err = nil
	}
	if err != nil {
		return nil, 0, err
	}

	merged, added := MergeItems(existing, items)
	return merged, added, nil
}

// Persist overwrites the day file with items.
func (s *Store) Persist(day string, items []model.NewsItem) error {
	if err := validDay(day); err != nil {
		return err
	}
	if items == nil {
		items = []model.NewsItem{}
	}
	if err := atomicfile.WriteJSON(s.Path(day), items); err != nil {
		return fmt.Errorf("persist archive %s: %w", day, err)
	}
	return nil
}

// Days lists the archived day keys, newest first.
func (s *Store) Days() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archive dir: %w", err)
	}

	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		day := strings.TrimSuffix(name, ext)
		if validDay(day) != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// MergeItems appends the items of incoming whose link is absent from
// existing, then sorts by publish time descending; on equal publish times
// existing items stay ahead of added ones. Items without a link are dropped.
// It returns the merged list and how many items were added.
func MergeItems(existing, incoming []model.NewsItem) ([]model.NewsItem, int) {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]model.NewsItem, 0, len(existing)+len(incoming))
	for _, it := range existing {
		if it.Link == "" || seen[it.Link] {
			continue
		}
		seen[it.Link] = true
		merged = append(merged, it)
	}

	added := 0
	for _, it := range incoming {
		if it.Link == "" || seen[it.Link] {
			continue
		}
		seen[it.Link] = true
		merged = append(merged, it)
		added++
	}

	SortNewestFirst(merged)
	return merged, added
}

// SortNewestFirst orders items by publish time descending. Ties keep their
// relative order.
func SortNewestFirst(items []model.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt.Time)
	})
}

// Links returns the set of links in items.
func Links(items []model.NewsItem) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it.Link] = true
	}
	return out
}

func validDay(day string) error {
	if _, err := jst.ParseDay(day); err != nil {
		return fmt.Errorf("invalid day key %q: %w", day, err)
	}
	return nil
}
