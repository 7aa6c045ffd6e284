package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultEdgeConfigURL = "https://edge-config.vercel.com"
	DefaultVercelAPIURL  = "https://api.vercel.com"
)

// EdgeConfigStore reads through the Edge Config endpoint and writes through
// the Vercel REST API.
type EdgeConfigStore struct {
	ConfigID  string
	ReadToken string
	APIToken  string
	TeamID    string

	ReadURL    string
	APIURL     string
	HTTPClient *http.Client
}

func NewEdgeConfig(configID, readToken, apiToken, teamID string) *EdgeConfigStore {
	return &EdgeConfigStore{
		ConfigID:  configID,
		ReadToken: readToken,
		APIToken:  apiToken,
		TeamID:    teamID,
		ReadURL:   DefaultEdgeConfigURL,
		APIURL:    DefaultVercelAPIURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type edgeConfigPatch struct {
	Items []edgeConfigOp `json:"items"`
}

type edgeConfigOp struct {
	Operation string `json:"operation"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

func (e *EdgeConfigStore) doRequest(ctx context.Context, method, rawURL, token string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

func (e *EdgeConfigStore) Load(ctx context.Context) (Snapshot, error) {
	if e.ConfigID == "" || e.ReadToken == "" {
		return Snapshot{}, ErrNotConfigured
	}
	u := fmt.Sprintf("%s/%s/items", strings.TrimRight(e.ReadURL, "/"), url.PathEscape(e.ConfigID))
	raw, err := e.doRequest(ctx, http.MethodGet, u, e.ReadToken, nil)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal edge config: %w", err)
	}
	return snap, nil
}

func (e *EdgeConfigStore) Save(ctx context.Context, s Snapshot) error {
	if e.ConfigID == "" || e.APIToken == "" {
		return ErrNotConfigured
	}
	u := fmt.Sprintf("%s/v1/edge-config/%s/items", strings.TrimRight(e.APIURL, "/"), url.PathEscape(e.ConfigID))
	if e.TeamID != "" {
		u += "?teamId=" + url.QueryEscape(e.TeamID)
	}
	payload := edgeConfigPatch{Items: []edgeConfigOp{
		{Operation: "upsert", Key: KeyCategories, Value: s.Categories},
		{Operation: "upsert", Key: KeyItems, Value: s.Items},
	}}
	_, err := e.doRequest(ctx, http.MethodPatch, u, e.APIToken, payload)
	return err
}
