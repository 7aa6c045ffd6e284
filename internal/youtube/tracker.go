package youtube

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	msgMissingKeyStrict = "YouTube API Key is missing on the server and no custom key was provided"
	msgMissingKey       = "YouTube API Key is missing"
)

type TrackedChannel struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	CustomURL       string `json:"customUrl,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	SubscriberCount string `json:"subscriberCount"`
	ViewCount       string `json:"viewCount"`
	VideoCount      string `json:"videoCount"`
}

type TrackedVideo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PublishedAt string `json:"publishedAt"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

type TrackerResult struct {
	Channel TrackedChannel `json:"channel"`
	Videos  []TrackedVideo `json:"videos"`
}

// Track resolves q (video link, channel link, @handle or free text) to a
// channel and returns its statistics with the latest 50 uploads.
func (c *Client) Track(ctx context.Context, q, keyOverride string) (*TrackerResult, error) {
	if q == "" {
		return nil, newError(http.StatusBadRequest, "Missing query parameter (YouTube URL or Handle)", ErrInvalidInput)
	}
	key := c.key(keyOverride)
	if key == "" {
		return nil, newError(http.StatusInternalServerError, msgMissingKeyStrict, ErrMissingKey)
	}

	res, err := c.track(ctx, q, key)
	if err != nil {
		return nil, failed("Failed to fetch YouTube data", err)
	}
	return res, nil
}

func (c *Client) track(ctx context.Context, q, key string) (*TrackerResult, error) {
	channelID, err := c.resolveTrackedChannel(ctx, q, key)
	if err != nil {
		return nil, err
	}
	if channelID == "" {
		return nil, newError(http.StatusBadRequest, "Could not determine a valid YouTube Channel from the input", ErrInvalidInput)
	}

	var channels listResponse
	err = c.get(ctx, key, "channels", url.Values{
		"part": {"statistics,contentDetails,snippet"},
		"id":   {channelID},
	}, &channels)
	if err != nil {
		return nil, err
	}
	if len(channels.Items) == 0 {
		return nil, newError(http.StatusNotFound, "Channel structure not found", ErrNotFound)
	}
	ch := channels.Items[0]

	out := &TrackerResult{
		Channel: TrackedChannel{
			ID:              ch.ID,
			Title:           ch.Snippet.Title,
			CustomURL:       ch.Snippet.CustomURL,
			Thumbnail:       ch.Snippet.Thumbnails.pick("high", "default"),
			SubscriberCount: ch.Statistics.SubscriberCount,
			ViewCount:       ch.Statistics.ViewCount,
			VideoCount:      ch.Statistics.VideoCount,
		},
		Videos: []TrackedVideo{},
	}

	uploads := ch.ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return out, nil
	}
	var playlist listResponse
	err = c.get(ctx, key, "playlistItems", url.Values{
		"part":       {"snippet,contentDetails"},
		"playlistId": {uploads},
		"maxResults": {"50"},
	}, &playlist)
	if err != nil {
		return nil, err
	}
	for _, it := range playlist.Items {
		out.Videos = append(out.Videos, TrackedVideo{
			ID:          it.ContentDetails.VideoID,
			Title:       it.Snippet.Title,
			PublishedAt: it.Snippet.PublishedAt,
			Thumbnail:   it.Snippet.Thumbnails.pick("medium", "default"),
		})
	}
	return out, nil
}

func (c *Client) resolveTrackedChannel(ctx context.Context, q, key string) (string, error) {
	clean := strings.SplitN(q, "?", 2)[0]

	if videoID := linkVideoID(q); videoID != "" {
		var videos listResponse
		if err := c.get(ctx, key, "videos", url.Values{"part": {"snippet"}, "id": {videoID}}, &videos); err != nil {
			return "", err
		}
		if len(videos.Items) == 0 {
			return "", newError(http.StatusNotFound, "Video found but could not resolve channel ID", ErrNotFound)
		}
		return videos.Items[0].Snippet.ChannelID, nil
	}

	if strings.Contains(clean, "channel/UC") {
		return ChannelID(clean), nil
	}

	term := clean
	if h := Handle(clean); h != "" {
		term = h
	}
	id, err := c.searchChannel(ctx, key, term)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", newError(http.StatusNotFound, "Channel not found from search query", ErrNotFound)
	}
	return id, nil
}

// searchChannel returns the best channel match for term or "".
func (c *Client) searchChannel(ctx context.Context, key, term string) (string, error) {
	var found searchResponse
	err := c.get(ctx, key, "search", url.Values{
		"part":       {"snippet"},
		"type":       {"channel"},
		"q":          {term},
		"maxResults": {"1"},
	}, &found)
	if err != nil {
		return "", err
	}
	if len(found.Items) == 0 {
		return "", nil
	}
	return found.Items[0].Snippet.ChannelID, nil
}
