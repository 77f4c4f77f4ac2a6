// Package fetcher handles news feed downloading, parsing, and entry extraction.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"cnjp_news/internal/model"
)

// DefaultUserAgent is sent when a source does not configure one. Some
// Japanese portals reject obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

const maxBody = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Entry is a raw feed entry before translation and classification.
type Entry struct {
	Source    string
	Title     string
	Link      string
	Published *time.Time
	Image     string
	Summary   string
}

// Fetcher downloads and parses news feeds.
type Fetcher struct {
	client    HTTPClient
	userAgent string
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: DefaultUserAgent,
	}
}

// Fetch downloads and parses a feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// FetchSource fetches a configured source and returns at most src.Limit entries.
func (f *Fetcher) FetchSource(ctx context.Context, src model.Source) ([]Entry, error) {
	feed, err := f.Fetch(ctx, src.URL, src.Headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	return Entries(src.Name, feed.Items, src.Limit), nil
}

// Entries converts parsed feed items into entries, skipping items without a
// title or link. A non-positive limit keeps every item.
func Entries(source string, items []*gofeed.Item, limit int) []Entry {
	var out []Entry
	for _, item := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		out = append(out, Entry{
			Source:    source,
			Title:     title,
			Link:      link,
			Published: published,
			Image:     ItemImage(item),
			Summary:   summary,
		})
	}
	return out
}

// ItemImage returns the best thumbnail URL for an item, or "".
// Structured fields are preferred over the first <img> of the HTML summary.
func ItemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image") {
			return enc.URL
		}
	}
	if u := extensionImage(item.Extensions); u != "" {
		return u
	}
	if u := htmlImage(item.Description); u != "" {
		return u
	}
	return htmlImage(item.Content)
}

func extensionImage(exts ext.Extensions) string {
	if media, ok := exts["media"]; ok {
		for _, e := range media["thumbnail"] {
			if u := e.Attrs["url"]; u != "" {
				return u
			}
		}
		for _, e := range media["content"] {
			u := e.Attrs["url"]
			if u == "" {
				continue
			}
			if e.Attrs["medium"] == "image" || strings.HasPrefix(e.Attrs["type"], "image") {
				return u
			}
		}
	}
	// Bing News: <News:Image>url</News:Image>
	for _, elems := range exts {
		for _, name := range []string{"Image", "image"} {
			for _, e := range elems[name] {
				if v := strings.TrimSpace(e.Value); strings.HasPrefix(v, "http") {
					return v
				}
			}
		}
	}
	return ""
}

func htmlImage(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	var src string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("src")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "//") {
			v = "https:" + v
		}
		if strings.HasPrefix(v, "http") {
			src = v
			return false
		}
		return true
	})
	return src
}
