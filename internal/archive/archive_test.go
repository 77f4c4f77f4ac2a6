package archive

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"cnjp_news/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func item(link, title string, minute int) model.NewsItem {
	return model.NewsItem{
		Title:       title,
		OriginTitle: title,
		Link:        link,
		Category:    model.CategoryOther,
		PublishedAt: model.NewUnixTime(time.Date(2025, 11, 28, 0, minute, 0, 0, time.UTC)),
	}
}

func titles(items []model.NewsItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestLoadMissingDayIsEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Load("2025-11-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(0, len(got)); diff != "" {
		t.Errorf("item count mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsInvalidDay(t *testing.T) {
	s := newTestStore(t)
	for _, day := range []string{"", "../etc/passwd", "2025-13-01", "today"} {
		if _, err := s.Load(day); err == nil {
			t.Errorf("Load(%q): expected error", day)
		}
	}
}

func TestLoadCorruptFile(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path("2025-11-28"), []byte("[{not json"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := s.Load("2025-11-28")
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if diff := cmp.Diff(0, len(got)); diff != "" {
		t.Errorf("item count mismatch (-want +got):\n%s", diff)
	}

	merged, added, err := s.Merge("2025-11-28", []model.NewsItem{item("a", "A", 1)})
	if err != nil {
		t.Fatalf("merge over corrupt file: %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, titles(merged)); diff != "" {
		t.Errorf("merged titles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeFirstSeenWins(t *testing.T) {
	s := newTestStore(t)
	day := "2025-11-28"

	if err := s.Persist(day, []model.NewsItem{item("a", "X", 1)}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	merged, added, err := s.Merge(day, []model.NewsItem{item("a", "X2", 5), item("b", "Y", 2)})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if diff := cmp.Diff(2, len(merged)); diff != "" {
		t.Fatalf("item count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	byLink := map[string]string{}
	for _, it := range merged {
		byLink[it.Link] = it.Title
	}
	if diff := cmp.Diff(map[string]string{"a": "X", "b": "Y"}, byLink); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	day := "2025-11-28"
	batch := []model.NewsItem{item("a", "A", 1), item("b", "B", 2), item("c", "C", 3)}

	first, _, err := s.Merge(day, batch)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := s.Persist(day, first); err != nil {
		t.Fatalf("persist: %v", err)
	}

	second, added, err := s.Merge(day, batch)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if diff := cmp.Diff(0, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("archive changed on re-merge (-want +got):\n%s", diff)
	}
}

func TestMergeDedupAcrossOverlappingBatches(t *testing.T) {
	s := newTestStore(t)
	day := "2025-11-28"

	batches := [][]model.NewsItem{
		{item("a", "A", 1), item("b", "B", 2)},
		{item("b", "B'", 3), item("c", "C", 4), item("c", "C'", 5)},
		{item("a", "A'", 6), item("d", "D", 7)},
	}

	prev := 0
	for i, batch := range batches {
		merged, _, err := s.Merge(day, batch)
		if err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}
		if len(merged) < prev {
			t.Errorf("merge %d shrank archive: %d < %d", i, len(merged), prev)
		}
		prev = len(merged)
		if err := s.Persist(day, merged); err != nil {
			t.Fatalf("persist %d: %v", i, err)
		}
	}

	got, err := s.Load(day)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	counts := map[string]int{}
	for _, it := range got {
		counts[it.Link]++
	}
	if diff := cmp.Diff(map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, counts); diff != "" {
		t.Errorf("link counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"D", "C", "B", "A"}, titles(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeItemsSortsNewestFirstStably(t *testing.T) {
	existing := []model.NewsItem{item("a", "A", 5), item("b", "B", 1)}
	incoming := []model.NewsItem{item("c", "C", 5), item("", "no link", 9), item("d", "D", 3)}

	merged, added := MergeItems(existing, incoming)

	if diff := cmp.Diff([]string{"A", "C", "D", "B"}, titles(merged)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	s := newTestStore(t)
	day := "2025-11-28"
	items := []model.NewsItem{
		{
			Title:       "日元走弱",
			TitleTC:     "日圓走弱",
			OriginTitle: "円安進む",
			Origin:      "共同通信",
			Link:        "https://example.com/a?x=1&y=2",
			Image:       "https://example.com/a.jpg",
			Category:    model.CategoryEconomy,
			PublishedAt: model.NewUnixTime(time.Date(2025, 11, 28, 0, 0, 0, 0, time.UTC)),
			DisplayTime: "11-28 09:00",
		},
	}

	if err := s.Persist(day, items); err != nil {
		t.Fatalf("persist: %v", err)
	}
	got, err := s.Load(day)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(items, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(filepath.Join(s.Dir(), day+".json")) //nolint:gosec // test path
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	want := `[
  {
    "title": "日元走弱",
    "title_tc": "日圓走弱",
    "title_ja": "円安進む",
    "origin": "共同通信",
    "link": "https://example.com/a?x=1&y=2",
    "image": "https://example.com/a.jpg",
    "category": "economy",
    "timestamp": 1764288000,
    "time_str": "11-28 09:00"
  }
]
`
	if diff := cmp.Diff(want, string(raw)); diff != "" {
		t.Errorf("serialized form mismatch (-want +got):\n%s", diff)
	}
}

func TestDays(t *testing.T) {
	s := newTestStore(t)
	for _, day := range []string{"2025-11-27", "2025-11-29", "2025-11-28"} {
		if err := s.Persist(day, nil); err != nil {
			t.Fatalf("persist %s: %v", day, err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "notes.json"), []byte("[]"), 0o600); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	got, err := s.Days()
	if err != nil {
		t.Fatalf("days: %v", err)
	}
	if diff := cmp.Diff([]string{"2025-11-29", "2025-11-28", "2025-11-27"}, got); diff != "" {
		t.Errorf("Days() mismatch (-want +got):\n%s", diff)
	}
}
