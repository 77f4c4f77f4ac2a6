package livestream

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// maxResults is the largest page the search endpoint returns.
const maxResults = 50

// YouTube searches live broadcasts with the YouTube Data API v3.
type YouTube struct {
	svc *youtube.Service
}

// NewYouTube creates a client authenticated with an API key. Extra options
// are passed to the underlying service, e.g. a custom endpoint in tests.
func NewYouTube(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTube, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTube{svc: svc}, nil
}

// LiveVideos returns the broadcasts currently live on a channel.
func (y *YouTube) LiveVideos(ctx context.Context, channelID string) ([]Video, error) {
	resp, err := y.svc.Search.List([]string{"id", "snippet"}).
		ChannelId(channelID).
		EventType("live").
		Type("video").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search live videos of %s: %w", channelID, err)
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		videos = append(videos, Video{ID: item.Id.VideoId, Title: item.Snippet.Title})
	}
	return videos, nil
}
