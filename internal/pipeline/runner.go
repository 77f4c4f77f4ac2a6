// Package pipeline runs the harvest: fetch, translate, archive and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cnjp_news/internal/archive"
	"cnjp_news/internal/fetcher"
	"cnjp_news/internal/homefeed"
	"cnjp_news/internal/jst"
	"cnjp_news/internal/model"
	"cnjp_news/internal/record"
	"cnjp_news/internal/storage"
)

// Job names used for the run lock and ledger.
const (
	JobNews    = "news"
	JobRebuild = "rebuild"
)

// ErrNothingFetched aborts a run in which no source returned any entry.
// Nothing is written in that case.
var ErrNothingFetched = errors.New("no entries fetched from any source")

// SourceFetcher fetches the entries of one source.
type SourceFetcher interface {
	FetchSource(ctx context.Context, src model.Source) ([]fetcher.Entry, error)
}

// RecordBuilder turns an entry into an archived item.
type RecordBuilder interface {
	Build(ctx context.Context, e fetcher.Entry, stripSuffix bool) (model.NewsItem, record.Outcome)
}

// Notifier receives the items newly added to a day.
type Notifier interface {
	SendDigest(day string, items []model.NewsItem) error
}

// Ledger serializes runs and records their outcome.
type Ledger interface {
	AcquireLock(ctx context.Context, job, owner string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, job, owner string) error
	StartRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
}

// Config holds the run parameters.
type Config struct {
	Sources      []model.Source
	HomeFeedPath string
	WindowDays   int
	HomeCap      int
	// Workers bounds concurrent translations; values below 1 mean 1.
	Workers int
	LockTTL time.Duration
}

// Summary describes a finished run.
type Summary struct {
	Day       string
	Fetched   int
	Failed    int // sources that could not be fetched
	Skipped   int // entries already archived today
	Fallbacks int // items kept with their untranslated title
	Added     int
	HomeCount int
}

// Runner executes pipeline runs.
type Runner struct {
	cfg     Config
	fetcher SourceFetcher
	builder RecordBuilder
	store   *archive.Store
	home    *homefeed.Aggregator
	ledger  Ledger
	notify  Notifier
	log     *slog.Logger
	now     func() time.Time
	owner   string
}

// New creates a Runner. The ledger and notifier are optional.
func New(cfg Config, f SourceFetcher, b RecordBuilder, store *archive.Store, log *slog.Logger) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:     cfg,
		fetcher: f,
		builder: b,
		store:   store,
		home:    homefeed.New(store, log),
		log:     log,
		now:     time.Now,
		owner:   uuid.NewString(),
	}
}

// SetLedger enables the run lock and run recording.
func (r *Runner) SetLedger(l Ledger) {
	r.ledger = l
}

// SetNotifier enables digests of newly archived items.
func (r *Runner) SetNotifier(n Notifier) {
	r.notify = n
}

// SetClock overrides the time source.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Run performs one harvest. It returns ErrNothingFetched when every source
// came back empty and storage.ErrLocked when another run is in progress;
// neither writes anything.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	err := r.withLock(ctx, JobNews, func(run *model.Run) error {
		var err error
		sum, err = r.harvest(ctx)
		run.Fetched = sum.Fetched
		run.Added = sum.Added
		run.HomeCount = sum.HomeCount
		return err
	})
	return sum, err
}

// Rebuild regenerates the home feed from the archives without fetching.
func (r *Runner) Rebuild(ctx context.Context) (int, error) {
	var n int
	err := r.withLock(ctx, JobRebuild, func(run *model.Run) error {
		var err error
		n, err = r.publishHome(r.now())
		run.HomeCount = n
		return err
	})
	return n, err
}

func (r *Runner) harvest(ctx context.Context) (Summary, error) {
	now := r.now()
	day := jst.DayKey(now)
	sum := Summary{Day: day}

	entries, failed, err := r.fetchAll(ctx)
	sum.Fetched, sum.Failed = len(entries), failed
	if err != nil {
		return sum, err
	}
	if len(entries) == 0 {
		return sum, ErrNothingFetched
	}

	fresh := r.unseen(day, entries)
	sum.Skipped = len(entries) - len(fresh)

	items, fallbacks, err := r.buildAll(ctx, fresh)
	sum.Fallbacks = fallbacks
	if err != nil {
		return sum, err
	}

	merged, added, err := r.store.Merge(day, items)
	if err != nil {
		return sum, fmt.Errorf("merge archive: %w", err)
	}
	if err := r.store.Persist(day, merged); err != nil {
		return sum, err
	}
	sum.Added = added
	r.log.Info("archive updated", "day", day, "added", added, "total", len(merged))

	if sum.HomeCount, err = r.publishHome(now); err != nil {
		return sum, err
	}

	if r.notify != nil && added > 0 {
		archive.SortNewestFirst(items)
		if err := r.notify.SendDigest(day, items); err != nil {
			r.log.Warn("send digest", "day", day, "error", err)
		}
	}
	return sum, nil
}

type sourcedEntry struct {
	entry       fetcher.Entry
	stripSuffix bool
}

// fetchAll fetches every source concurrently. A failing source is logged and
// skipped; the result keeps source order.
func (r *Runner) fetchAll(ctx context.Context) ([]sourcedEntry, int, error) {
	results := make([][]fetcher.Entry, len(r.cfg.Sources))
	var failed atomic.Int32

	var g errgroup.Group
	for i, src := range r.cfg.Sources {
		g.Go(func() error {
			entries, err := r.fetcher.FetchSource(ctx, src)
			if err != nil {
				r.log.Error("fetch source", "source", src.Name, "url", src.URL, "error", err)
				failed.Add(1)
				return nil
			}
			r.log.Debug("fetched source", "source", src.Name, "entries", len(entries))
			results[i] = entries
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, int(failed.Load()), err
	}

	var out []sourcedEntry
	for i, entries := range results {
		for _, e := range entries {
			out = append(out, sourcedEntry{entry: e, stripSuffix: r.cfg.Sources[i].StripSuffix})
		}
	}
	return out, int(failed.Load()), nil
}

// unseen drops entries already archived for day and repeated links within
// the batch, so that known headlines are not translated again.
func (r *Runner) unseen(day string, entries []sourcedEntry) []sourcedEntry {
	existing, err := r.store.Load(day)
	if err != nil {
		// Merge reports the problem; everything is treated as new here.
		r.log.Debug("preload archive", "day", day, "error", err)
	}
	known := archive.Links(existing)

	out := make([]sourcedEntry, 0, len(entries))
	for _, se := range entries {
		if known[se.entry.Link] {
			continue
		}
		known[se.entry.Link] = true
		out = append(out, se)
	}
	return out
}

func (r *Runner) buildAll(ctx context.Context, entries []sourcedEntry) ([]model.NewsItem, int, error) {
	items := make([]model.NewsItem, len(entries))
	var fallbacks atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, se := range entries {
		g.Go(func() error {
			item, out := r.builder.Build(gctx, se.entry, se.stripSuffix)
			if out.Fallback {
				fallbacks.Add(1)
				r.log.Warn("translation failed, keeping original title",
					"source", se.entry.Source, "link", se.entry.Link, "error", out.Err)
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, int(fallbacks.Load()), err
	}
	// A cancelled run would archive untranslated fallbacks.
	if err := ctx.Err(); err != nil {
		return nil, int(fallbacks.Load()), err
	}
	return items, int(fallbacks.Load()), nil
}

func (r *Runner) publishHome(now time.Time) (int, error) {
	items := r.home.Rebuild(now, r.cfg.WindowDays, r.cfg.HomeCap)
	if err := homefeed.Write(r.cfg.HomeFeedPath, items, now); err != nil {
		return 0, err
	}
	r.log.Info("home feed written", "path", r.cfg.HomeFeedPath, "items", len(items))
	return len(items), nil
}

// withLock runs fn holding the job lock and records the run in the ledger.
// Without a ledger fn runs unguarded. Ledger bookkeeping failures are logged
// and never fail the run.
func (r *Runner) withLock(ctx context.Context, job string, fn func(run *model.Run) error) error {
	run := &model.Run{Job: job}
	if r.ledger == nil {
		return fn(run)
	}

	if err := r.ledger.AcquireLock(ctx, job, r.owner, r.cfg.LockTTL); err != nil {
		if errors.Is(err, storage.ErrLocked) {
			return err
		}
		return fmt.Errorf("acquire lock: %w", err)
	}
	bg := context.WithoutCancel(ctx)
	defer func() {
		if err := r.ledger.ReleaseLock(bg, job, r.owner); err != nil {
			r.log.Error("release lock", "job", job, "error", err)
		}
	}()

	started := true
	if err := r.ledger.StartRun(ctx, run); err != nil {
		r.log.Warn("record run start", "job", job, "error", err)
		started = false
	}

	err := fn(run)

	switch {
	case err == nil:
		run.Status = model.RunOK
	case errors.Is(err, ErrNothingFetched):
		run.Status = model.RunAborted
		run.Error = err.Error()
	default:
		run.Status = model.RunFailed
		run.Error = err.Error()
	}
	if started {
		if ferr := r.ledger.FinishRun(bg, run); ferr != nil {
			r.log.Warn("record run finish", "job", job, "run_id", run.ID, "error", ferr)
		}
	}
	return err
}
