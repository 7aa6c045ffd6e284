// Package youtube proxies the YouTube Data API v3 for the analytics tools of
// the Mini App: channel tracker, video spy, trends, comments and super search.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DataAPIBase = "https://www.googleapis.com/youtube/v3"

var (
	ErrMissingKey   = errors.New("youtube api key is missing")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a failure with the HTTP status and message the Mini App expects.
type Error struct {
	Status  int
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(status int, msg string, err error) *Error {
	return &Error{Status: status, Message: msg, Err: err}
}

// failed wraps an unexpected error under the operation's generic message.
func failed(msg string, err error) error {
	var ye *Error
	if errors.As(err, &ye) {
		return err
	}
	return &Error{Status: http.StatusInternalServerError, Message: msg, Details: err.Error(), Err: err}
}

// UpstreamError is a non-2xx answer from the Data API.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("youtube api error: %s (status: %d)", e.Message, e.Status)
}

// Cache stores raw API responses. Keys never contain the API key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Cache      Cache
	Now        func() time.Time
	// OnCall observes every upstream request by endpoint and outcome.
	OnCall func(endpoint string, err error)
}

func New(apiKey string) *Client {
	return &Client{
		BaseURL:    DataAPIBase,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Now:        time.Now,
	}
}

// key picks the per-request override before the server key.
func (c *Client) key(override string) string {
	if k := strings.TrimSpace(override); k != "" {
		return k
	}
	return c.APIKey
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// get calls endpoint with params and decodes the JSON answer into out.
func (c *Client) get(ctx context.Context, apiKey, endpoint string, params url.Values, out any) error {
	cacheKey := endpoint + "?" + params.Encode()
	if c.Cache != nil {
		if body, ok := c.Cache.Get(ctx, cacheKey); ok {
			if err := json.Unmarshal(body, out); err == nil {
				return nil
			}
		}
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", apiKey)

	base := c.BaseURL
	if base == "" {
		base = DataAPIBase
	}
	body, err := c.fetch(ctx, strings.TrimRight(base, "/")+"/"+endpoint+"?"+q.Encode())
	if c.OnCall != nil {
		c.OnCall(endpoint, err)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	if c.Cache != nil {
		c.Cache.Set(ctx, cacheKey, body)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorBody
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		log.Printf("youtube: %s -> %d %s", redactKey(rawURL), resp.StatusCode, msg)
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}

func redactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// --- Data API v3 wire types (only the consumed fields) ---

type thumbnail struct {
	URL string `json:"url"`
}

type thumbnails map[string]thumbnail

// pick returns the first available size in order.
func (t thumbnails) pick(sizes ...string) string {
	for _, s := range sizes {
		if th, ok := t[s]; ok && th.URL != "" {
			return th.URL
		}
	}
	return ""
}

type snippet struct {
	Title                string     `json:"title"`
	ChannelID            string     `json:"channelId"`
	ChannelTitle         string     `json:"channelTitle"`
	CustomURL            string     `json:"customUrl"`
	PublishedAt          string     `json:"publishedAt"`
	Tags                 []string   `json:"tags"`
	Thumbnails           thumbnails `json:"thumbnails"`
	LiveBroadcastContent string     `json:"liveBroadcastContent"`
}

type statistics struct {
	ViewCount       string `json:"viewCount"`
	LikeCount       string `json:"likeCount"`
	CommentCount    string `json:"commentCount"`
	SubscriberCount string `json:"subscriberCount"`
	VideoCount      string `json:"videoCount"`
}

type contentDetails struct {
	Duration         string `json:"duration"`
	VideoID          string `json:"videoId"`
	RelatedPlaylists struct {
		Uploads string `json:"uploads"`
	} `json:"relatedPlaylists"`
}

type resource struct {
	ID             string         `json:"id"`
	Snippet        snippet        `json:"snippet"`
	Statistics     statistics     `json:"statistics"`
	ContentDetails contentDetails `json:"contentDetails"`
}

type listResponse struct {
	Items         []resource `json:"items"`
	NextPageToken string     `json:"nextPageToken"`
}

type searchResult struct {
	ID struct {
		VideoID   string `json:"videoId"`
		ChannelID string `json:"channelId"`
	} `json:"id"`
	Snippet snippet `json:"snippet"`
}

type searchResponse struct {
	Items         []searchResult `json:"items"`
	NextPageToken string         `json:"nextPageToken"`
}
