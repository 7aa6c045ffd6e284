package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultVercelBlobURL = "https://blob.vercel-storage.com"
	vercelBlobAPIVersion = "7"
)

// VercelStore talks to the Vercel Blob REST API.
type VercelStore struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewVercel(token, baseURL string) *VercelStore {
	if baseURL == "" {
		baseURL = DefaultVercelBlobURL
	}
	return &VercelStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type vercelListResponse struct {
	Blobs   []Blob `json:"blobs"`
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"hasMore"`
}

func (v *VercelStore) doRequest(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.Token)
	req.Header.Set("x-api-version", vercelBlobAPIVersion)
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("blob api error: %s (status: %d)", strings.TrimSpace(string(respBody)), resp.StatusCode)
	}
	return respBody, nil
}

func (v *VercelStore) List(ctx context.Context, prefix string) ([]Blob, error) {
	var out []Blob
	cursor := ""
	for {
		q := url.Values{}
		q.Set("limit", "1000")
		if prefix != "" {
			q.Set("prefix", prefix)
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		raw, err := v.doRequest(ctx, http.MethodGet, v.BaseURL+"?"+q.Encode(), nil, nil)
		if err != nil {
			return nil, err
		}
		var page vercelListResponse
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		out = append(out, page.Blobs...)
		if !page.HasMore || page.Cursor == "" {
			return out, nil
		}
		cursor = page.Cursor
	}
}

// Get downloads a blob. A timestamp query defeats CDN caching of stale versions.
func (v *VercelStore) Get(ctx context.Context, blobURL string) ([]byte, error) {
	sep := "?"
	if strings.Contains(blobURL, "?") {
		sep = "&"
	}
	u := blobURL + sep + "t=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	return v.doRequest(ctx, http.MethodGet, u, nil, map[string]string{"Cache-Control": "no-store"})
}

func (v *VercelStore) Put(ctx context.Context, pathname string, body []byte, opts PutOptions) (Blob, error) {
	headers := map[string]string{
		"x-content-type":      contentTypeOr(opts),
		"x-add-random-suffix": "0",
		"x-allow-overwrite":   "1",
	}
	if opts.AddRandomSuffix {
		headers["x-add-random-suffix"] = "1"
	}
	raw, err := v.doRequest(ctx, http.MethodPut, v.BaseURL+"/"+strings.TrimLeft(pathname, "/"), bytes.NewReader(body), headers)
	if err != nil {
		return Blob{}, err
	}
	var blob Blob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return Blob{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	blob.Size = int64(len(body))
	if blob.UploadedAt.IsZero() {
		blob.UploadedAt = time.Now()
	}
	return blob, nil
}

func (v *VercelStore) Delete(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string][]string{"urls": urls})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	_, err = v.doRequest(ctx, http.MethodPost, v.BaseURL+"/delete", bytes.NewReader(payload),
		map[string]string{"Content-Type": "application/json"})
	return err
}
