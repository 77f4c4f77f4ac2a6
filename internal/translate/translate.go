// Package translate calls the public Google Translate endpoint.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultEndpoint is the keyless Google Translate endpoint.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

const maxInput = 4000

// ErrUntranslated is returned when the service responds without a usable translation.
var ErrUntranslated = errors.New("no translation returned")

// Translator translates text between languages.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Client is a Translator backed by the Google "gtx" endpoint.
type Client struct {
	http     *resty.Client
	endpoint string
}

// New creates a Client. An empty endpoint uses DefaultEndpoint.
func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; cnjp-news/1.0)")
	return &Client{http: c, endpoint: endpoint}
}

// Translate returns text translated from source to target. Use "auto" as
// source to let the service detect the language.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if r := []rune(text); len(r) > maxInput {
		text = string(r[:maxInput])
	}
	if source == "" {
		source = "auto"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     source,
			"tl":     target,
			"dt":     "t",
			"q":      text,
		}).
		Get(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("translate: unexpected status %d", resp.StatusCode())
	}

	out, err := parseResponse(resp.Body())
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	// An echo of the input means the service did not translate it.
	if t := strings.TrimSpace(out); t == "" || t == text {
		return "", ErrUntranslated
	}
	return out, nil
}

// parseResponse joins the translated segments of a gtx response, which is a
// nested array whose first element lists [translated, original, ...] pairs.
func parseResponse(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(raw) == 0 {
		return "", ErrUntranslated
	}

	var segments [][]any
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("decode segments: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), nil
}

// Noop returns its input unchanged. It is used when translation is disabled.
type Noop struct{}

// Translate implements Translator.
func (Noop) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}
