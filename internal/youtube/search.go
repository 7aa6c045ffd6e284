package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

type Format string

const (
	FormatAll    Format = "all"
	FormatShorts Format = "shorts"
	FormatVideo  Format = "video"
	FormatStream Format = "stream"
)

type SearchQuery struct {
	Query   string
	MinSubs string
	MaxSubs string
	Format  string
	Key     string
}

type SearchVideo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	PublishedAt     string `json:"publishedAt"`
	ChannelID       string `json:"channelId"`
	ChannelTitle    string `json:"channelTitle"`
	SubscriberCount int64  `json:"subscriberCount"`
	ViewCount       int64  `json:"viewCount"`
}

type SearchResult struct {
	Results      []SearchVideo `json:"results"`
	ScannedTotal int           `json:"scannedTotal"`
}

const (
	searchWindow  = 7 * 24 * time.Hour
	idChunk       = 50
	searchResults = 15
)

type videoStat struct {
	views    int64
	duration time.Duration
}

// SuperSearch looks for fresh high-view videos from small channels: the
// "diamonds" whose channel subscriber count falls inside [MinSubs, MaxSubs].
func (c *Client) SuperSearch(ctx context.Context, sq SearchQuery) (*SearchResult, error) {
	key := c.key(sq.Key)
	if key == "" {
		return nil, newError(http.StatusInternalServerError, msgMissingKey, ErrMissingKey)
	}
	if strings.TrimSpace(sq.Query) == "" {
		return nil, newError(http.StatusBadRequest, "Введіть ключове слово для пошуку", ErrInvalidInput)
	}

	res, err := c.superSearch(ctx, sq, key)
	if err != nil {
		return nil, failed("Ой, сталася помилка при пошуку діамантів.", err)
	}
	return res, nil
}

func (c *Client) superSearch(ctx context.Context, sq SearchQuery, key string) (*SearchResult, error) {
	minSubs := leadingInt(sq.MinSubs, 0)
	maxSubs := leadingInt(sq.MaxSubs, 10000)
	format := Format(sq.Format)
	if format == "" {
		format = FormatAll
	}

	params := url.Values{
		"part":       {"snippet"},
		"maxResults": {"50"},
		"q":          {sq.Query},
		"type":       {"video"},
		"order":      {"viewCount"},
	}
	if format == FormatStream {
		params.Set("eventType", "live")
	} else {
		// Hour granularity keeps repeated searches on one cache key.
		params.Set("publishedAfter", isoTime(c.now().Add(-searchWindow).Truncate(time.Hour)))
	}

	var videos []searchResult
	for page := 0; page < pageLimit; page++ {
		var resp searchResponse
		if err := c.get(ctx, key, "search", params, &resp); err != nil {
			if isUpstream(err) {
				break
			}
			return nil, err
		}
		videos = append(videos, resp.Items...)
		if resp.NextPageToken == "" {
			break
		}
		params.Set("pageToken", resp.NextPageToken)
	}

	if len(videos) == 0 {
		return &SearchResult{Results: []SearchVideo{}}, nil
	}

	var channelIDs, videoIDs []string
	seenCh, seenV := map[string]bool{}, map[string]bool{}
	for _, v := range videos {
		if id := v.Snippet.ChannelID; !seenCh[id] {
			seenCh[id] = true
			channelIDs = append(channelIDs, id)
		}
		if id := v.ID.VideoID; !seenV[id] {
			seenV[id] = true
			videoIDs = append(videoIDs, id)
		}
	}

	subs := map[string]int64{}
	for _, chunk := range chunks(channelIDs, idChunk) {
		var resp listResponse
		err := c.get(ctx, key, "channels", url.Values{"part": {"statistics"}, "id": {strings.Join(chunk, ",")}}, &resp)
		if err != nil {
			if isUpstream(err) {
				continue
			}
			return nil, err
		}
		for _, ch := range resp.Items {
			subs[ch.ID] = atoi(ch.Statistics.SubscriberCount)
		}
	}

	stats := map[string]videoStat{}
	for _, chunk := range chunks(videoIDs, idChunk) {
		var resp listResponse
		err := c.get(ctx, key, "videos", url.Values{"part": {"statistics,contentDetails"}, "id": {strings.Join(chunk, ",")}}, &resp)
		if err != nil {
			if isUpstream(err) {
				continue
			}
			return nil, err
		}
		for _, v := range resp.Items {
			stats[v.ID] = videoStat{views: atoi(v.Statistics.ViewCount), duration: ParseDuration(v.ContentDetails.Duration)}
		}
	}

	results := []SearchVideo{}
	picked := map[string]bool{}
	for _, v := range videos {
		id, chID := v.ID.VideoID, v.Snippet.ChannelID
		st := stats[id]
		if !format.matches(st.duration, v.Snippet.LiveBroadcastContent) {
			continue
		}
		s := subs[chID]
		if s < minSubs || s > maxSubs || picked[id] {
			continue
		}
		picked[id] = true
		results = append(results, SearchVideo{
			ID:              id,
			Title:           v.Snippet.Title,
			ThumbnailURL:    v.Snippet.Thumbnails.pick("high", "medium"),
			PublishedAt:     v.Snippet.PublishedAt,
			ChannelID:       chID,
			ChannelTitle:    v.Snippet.ChannelTitle,
			SubscriberCount: s,
			ViewCount:       st.views,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].ViewCount > results[j].ViewCount })
	if len(results) > searchResults {
		results = results[:searchResults]
	}
	return &SearchResult{Results: results, ScannedTotal: len(videos)}, nil
}

func (f Format) matches(d time.Duration, liveContent string) bool {
	short, live := IsShort(d), IsLive(liveContent)
	switch f {
	case FormatShorts:
		return short
	case FormatVideo:
		return !short && !live
	case FormatStream:
		return live
	default:
		return true
	}
}

func isUpstream(err error) bool {
	var up *UpstreamError
	return errors.As(err, &up)
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := size
		if len(ids) < n {
			n = len(ids)
		}
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}
