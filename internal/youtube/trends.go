package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

type TrendingVideo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	ViewCount    string `json:"viewCount"`
	PublishedAt  string `json:"publishedAt"`
	Duration     string `json:"duration"`
}

type TrendsResult struct {
	Trends       []TrendingVideo `json:"trends"`
	ScannedTotal int             `json:"scannedTotal"`
}

const pageLimit = 2

// Trends returns up to 100 most popular videos for a region and category.
// Category "0" means all categories.
func (c *Client) Trends(ctx context.Context, regionCode, categoryID, keyOverride string) (*TrendsResult, error) {
	key := c.key(keyOverride)
	if key == "" {
		return nil, newError(http.StatusInternalServerError, msgMissingKey, ErrMissingKey)
	}
	if regionCode == "" {
		regionCode = "UA"
	}
	if categoryID == "" {
		categoryID = "0"
	}

	params := url.Values{
		"part":       {"snippet,statistics,contentDetails"},
		"chart":      {"mostPopular"},
		"maxResults": {"50"},
		"regionCode": {regionCode},
	}
	if categoryID != "0" {
		params.Set("videoCategoryId", categoryID)
	}

	var items []resource
	for page := 0; page < pageLimit; page++ {
		var resp listResponse
		if err := c.get(ctx, key, "videos", params, &resp); err != nil {
			var up *UpstreamError
			if !errors.As(err, &up) {
				return nil, failed("Ой, щось пішло не так при завантаженні трендів.", err)
			}
			// A category unavailable in a region fails on the first page;
			// later pages just end the listing.
			if page == 0 {
				return nil, &Error{Status: http.StatusInternalServerError, Message: "Failed to fetch trending videos", Err: err}
			}
			break
		}
		items = append(items, resp.Items...)
		if resp.NextPageToken == "" {
			break
		}
		params.Set("pageToken", resp.NextPageToken)
	}

	out := &TrendsResult{Trends: make([]TrendingVideo, 0, len(items)), ScannedTotal: len(items)}
	for _, it := range items {
		out.Trends = append(out.Trends, TrendingVideo{
			ID:           it.ID,
			Title:        it.Snippet.Title,
			ChannelTitle: it.Snippet.ChannelTitle,
			ThumbnailURL: it.Snippet.Thumbnails.pick("maxres", "high", "medium"),
			ViewCount:    it.Statistics.ViewCount,
			PublishedAt:  it.Snippet.PublishedAt,
			Duration:     it.ContentDetails.Duration,
		})
	}
	return out, nil
}
