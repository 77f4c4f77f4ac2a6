// Package livestream publishes which watched YouTube channels are live and
// which of their broadcasts best matches each channel's keywords.
package livestream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cnjp_news/internal/atomicfile"
	"cnjp_news/internal/jst"
	"cnjp_news/internal/model"
	"cnjp_news/internal/objectstore"
)

// Video is a live broadcast found on a channel.
type Video struct {
	ID    string
	Title string
}

// Searcher finds the live broadcasts of a channel.
type Searcher interface {
	LiveVideos(ctx context.Context, channelID string) ([]Video, error)
}

// Job builds and publishes the stream snapshot.
type Job struct {
	search   Searcher
	channels []model.StreamChannel
	output   string
	log      *slog.Logger
	now      func() time.Time

	uploader objectstore.Uploader
	bucket   string
	key      string
}

// NewJob creates a Job writing the snapshot to output.
func NewJob(search Searcher, channels []model.StreamChannel, output string, log *slog.Logger) *Job {
	return &Job{
		search:   search,
		channels: channels,
		output:   output,
		log:      log,
		now:      time.Now,
	}
}

// SetUploader mirrors every written snapshot to bucket/key.
func (j *Job) SetUploader(u objectstore.Uploader, bucket, key string) {
	j.uploader = u
	j.bucket = bucket
	j.key = key
}

// SetClock overrides the time source.
func (j *Job) SetClock(now func() time.Time) {
	j.now = now
}

// Run checks every channel and writes the snapshot. A channel whose search
// fails is reported offline. Only a failure to write the local file is
// returned; upload failures are logged.
func (j *Job) Run(ctx context.Context) (model.StreamSnapshot, error) {
	snap := model.StreamSnapshot{
		LastUpdated: j.now().In(jst.Zone).Format(time.RFC3339),
		Streams:     make([]model.Stream, 0, len(j.channels)),
	}

	for _, ch := range j.channels {
		if err := ctx.Err(); err != nil {
			return snap, err
		}
		snap.Streams = append(snap.Streams, j.check(ctx, ch))
	}

	data, err := atomicfile.EncodeJSON(snap)
	if err != nil {
		return snap, err
	}
	if err := atomicfile.WriteFile(j.output, data, 0o644); err != nil {
		return snap, fmt.Errorf("persist stream snapshot: %w", err)
	}
	j.log.Info("stream snapshot written", "path", j.output, "channels", len(snap.Streams), "live", liveCount(snap.Streams))

	if j.uploader != nil {
		if err := j.uploader.Put(ctx, j.bucket, j.key, data, "application/json"); err != nil {
			j.log.Warn("upload stream snapshot", "bucket", j.bucket, "key", j.key, "error", err)
		} else {
			j.log.Info("stream snapshot uploaded", "bucket", j.bucket, "key", j.key)
		}
	}
	return snap, nil
}

func (j *Job) check(ctx context.Context, ch model.StreamChannel) model.Stream {
	stream := model.Stream{
		ID:          ch.ID,
		DisplayName: ch.DisplayName,
		ChannelName: ch.ChannelName,
	}

	videos, err := j.search.LiveVideos(ctx, ch.ChannelID)
	if err != nil {
		j.log.Error("search live streams", "channel", ch.ChannelName, "channel_id", ch.ChannelID, "error", err)
		return stream
	}
	best, score, ok := BestMatch(videos, ch.Keywords)
	if !ok {
		j.log.Debug("channel offline", "channel", ch.ChannelName)
		return stream
	}
	if score == 0 {
		j.log.Debug("no keyword match, using first broadcast", "channel", ch.ChannelName, "title", best.Title)
	}

	stream.IsLive = true
	stream.VideoID = &best.ID
	stream.Title = &best.Title
	stream.MatchScore = score
	return stream
}

// Score counts the keywords contained in title, ignoring case.
func Score(title string, keywords []string) int {
	title = strings.ToLower(title)
	n := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(title, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

// BestMatch returns the highest scoring video, preferring the earliest one
// on ties. It reports false when videos is empty.
func BestMatch(videos []Video, keywords []string) (Video, int, bool) {
	if len(videos) == 0 {
		return Video{}, 0, false
	}
	best, bestScore := videos[0], Score(videos[0].Title, keywords)
	for _, v := range videos[1:] {
		if s := Score(v.Title, keywords); s > bestScore {
			best, bestScore = v, s
		}
	}
	return best, bestScore, true
}

func liveCount(streams []model.Stream) int {
	n := 0
	for _, s := range streams {
		if s.IsLive {
			n++
		}
	}
	return n
}
