package youtube

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type VideoStats struct {
	ViewCount      int64  `json:"viewCount"`
	LikeCount      int64  `json:"likeCount"`
	CommentCount   int64  `json:"commentCount"`
	EngagementRate string `json:"engagementRate"`
}

type SpyVideo struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	ChannelTitle string     `json:"channelTitle,omitempty"`
	Thumbnail    string     `json:"thumbnail,omitempty"`
	PublishedAt  string     `json:"publishedAt"`
	Tags         []string   `json:"tags"`
	Stats        VideoStats `json:"stats"`
}

// SpyResult is either a channel digest (Type "channel") or one video.
type SpyResult struct {
	Type         string     `json:"type"`
	ChannelTitle string     `json:"channelTitle,omitempty"`
	Videos       []SpyVideo `json:"videos,omitempty"`
	Video        *SpyVideo  `json:"video,omitempty"`
}

const spyWindow = 30 * 24 * time.Hour

// Spy analyses a channel's best videos of the last 30 days, or a single video.
func (c *Client) Spy(ctx context.Context, q, keyOverride string) (*SpyResult, error) {
	if q == "" {
		return nil, newError(http.StatusBadRequest, "Missing query parameter (YouTube URL)", ErrInvalidInput)
	}
	key := c.key(keyOverride)
	if key == "" {
		return nil, newError(http.StatusInternalServerError, msgMissingKeyStrict, ErrMissingKey)
	}

	res, err := c.spy(ctx, stripShare(q), key)
	if err != nil {
		return nil, failed("Failed to fetch YouTube Video data", err)
	}
	return res, nil
}

func (c *Client) spy(ctx context.Context, clean, key string) (*SpyResult, error) {
	if id := ChannelID(clean); id != "" {
		return c.spyChannel(ctx, key, id)
	}
	if h := Handle(clean); h != "" {
		id, err := c.searchChannel(ctx, key, h)
		if err != nil {
			return nil, err
		}
		return c.spyChannel(ctx, key, id)
	}

	videoID := linkVideoID(clean)
	if videoID == "" && len(clean) == 11 && !strings.ContainsAny(clean, "/=") {
		videoID = clean
	}
	if videoID == "" {
		return nil, newError(http.StatusBadRequest, "Будь ласка, вставте пряме посилання на ВІДЕО, Shorts або Канал.", ErrInvalidInput)
	}

	var videos listResponse
	err := c.get(ctx, key, "videos", url.Values{"part": {"snippet,statistics"}, "id": {videoID}}, &videos)
	if err != nil {
		return nil, err
	}
	if len(videos.Items) == 0 {
		return nil, newError(http.StatusNotFound, "Video not found or is private", ErrNotFound)
	}
	v := spyVideo(videos.Items[0], true)
	return &SpyResult{Type: "video", Video: &v}, nil
}

func (c *Client) spyChannel(ctx context.Context, key, channelID string) (*SpyResult, error) {
	if channelID == "" {
		return nil, newError(http.StatusNotFound, "Не вдалося знайти канал за цим посиланням.", ErrNotFound)
	}

	var found searchResponse
	err := c.get(ctx, key, "search", url.Values{
		"part":           {"id,snippet"},
		"channelId":      {channelID},
		"type":           {"video"},
		"order":          {"viewCount"},
		"publishedAfter": {isoTime(c.now().Add(-spyWindow))},
		"maxResults":     {"3"},
	}, &found)
	if err != nil {
		return nil, err
	}
	if len(found.Items) == 0 {
		return nil, newError(http.StatusNotFound, "На цьому каналі не знайдено публічних відео за останні 30 днів.", ErrNotFound)
	}

	ids := make([]string, 0, len(found.Items))
	for _, it := range found.Items {
		ids = append(ids, it.ID.VideoID)
	}

	var stats listResponse
	err = c.get(ctx, key, "videos", url.Values{
		"part": {"snippet,statistics"},
		"id":   {strings.Join(ids, ",")},
	}, &stats)
	if err != nil {
		return nil, err
	}

	out := &SpyResult{
		Type:         "channel",
		ChannelTitle: found.Items[0].Snippet.ChannelTitle,
		Videos:       make([]SpyVideo, 0, len(stats.Items)),
	}
	for _, v := range stats.Items {
		out.Videos = append(out.Videos, spyVideo(v, false))
	}
	return out, nil
}

func spyVideo(v resource, withChannel bool) SpyVideo {
	views := atoi(v.Statistics.ViewCount)
	likes := atoi(v.Statistics.LikeCount)
	comments := atoi(v.Statistics.CommentCount)

	tags := v.Snippet.Tags
	if tags == nil {
		tags = []string{}
	}
	out := SpyVideo{
		ID:          v.ID,
		Title:       v.Snippet.Title,
		Thumbnail:   v.Snippet.Thumbnails.pick("maxres", "high", "default"),
		PublishedAt: v.Snippet.PublishedAt,
		Tags:        tags,
		Stats: VideoStats{
			ViewCount:      views,
			LikeCount:      likes,
			CommentCount:   comments,
			EngagementRate: EngagementRate(views, likes, comments),
		},
	}
	if withChannel {
		out.ChannelTitle = v.Snippet.ChannelTitle
	}
	return out
}
