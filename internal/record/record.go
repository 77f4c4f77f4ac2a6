// Package record assembles canonical news items from fetched entries.
package record

import (
	"context"
	"strings"
	"time"

	"cnjp_news/internal/fetcher"
	"cnjp_news/internal/jst"
	"cnjp_news/internal/model"
	"cnjp_news/internal/translate"
)

// Classifier maps a headline to a category.
type Classifier interface {
	Classify(title string) model.Category
}

// Outcome reports how a record was built.
type Outcome struct {
	// Fallback is set when the primary translation failed and the
	// untranslated title was used instead.
	Fallback bool
	// Err is the translation error behind Fallback.
	Err error
	// TCFallback is set when the Traditional Chinese translation failed.
	TCFallback bool
}

// Options configures a Builder.
type Options struct {
	SourceLang string // e.g. "ja"
	TargetLang string // e.g. "zh-CN"
	// TCLang enables a second title in Traditional Chinese when set, e.g. "zh-TW".
	TCLang string
	Now    func() time.Time
}

// Builder turns fetcher entries into model.NewsItem values.
// It is safe for concurrent use if its translator and classifier are.
type Builder struct {
	tr   translate.Translator
	cls  Classifier
	opts Options
}

// NewBuilder creates a Builder.
func NewBuilder(tr translate.Translator, cls Classifier, opts Options) *Builder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SourceLang == "" {
		opts.SourceLang = "auto"
	}
	if opts.TargetLang == "" {
		opts.TargetLang = "zh-CN"
	}
	return &Builder{tr: tr, cls: cls, opts: opts}
}

// Build creates the record for e. A failed translation never fails the build:
// the untranslated title is used and reported through Outcome.
func (b *Builder) Build(ctx context.Context, e fetcher.Entry, stripSuffix bool) (model.NewsItem, Outcome) {
	originTitle, origin := e.Title, e.Source
	if stripSuffix {
		if t, media, ok := SplitMediaSuffix(e.Title); ok {
			originTitle, origin = t, media
		}
	}

	var out Outcome
	title, err := b.tr.Translate(ctx, originTitle, b.opts.SourceLang, b.opts.TargetLang)
	if err != nil || strings.TrimSpace(title) == "" {
		out.Fallback = true
		out.Err = err
		title = originTitle
	}

	var titleTC string
	if b.opts.TCLang != "" {
		tc, err := b.tr.Translate(ctx, originTitle, b.opts.SourceLang, b.opts.TCLang)
		if err != nil || strings.TrimSpace(tc) == "" {
			out.TCFallback = true
			tc = title
		}
		titleTC = tc
	}

	instant, display := jst.Normalize(e.Published, b.opts.Now())

	return model.NewsItem{
		Title:       title,
		TitleTC:     titleTC,
		OriginTitle: originTitle,
		Origin:      origin,
		Link:        e.Link,
		Image:       e.Image,
		Category:    b.cls.Classify(title),
		PublishedAt: model.NewUnixTime(instant),
		DisplayTime: display,
	}, out
}

// SplitMediaSuffix splits "headline - Media" into its parts. Aggregators such
// as Google News append the publisher after the last " - ".
func SplitMediaSuffix(title string) (string, string, bool) {
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return title, "", false
	}
	head := strings.TrimSpace(title[:i])
	media := strings.TrimSpace(title[i+len(" - "):])
	if head == "" || media == "" {
		return title, "", false
	}
	return head, media, true
}
