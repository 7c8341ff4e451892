package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"streamvault/models"
)

// ErrNotConfigured is returned when no API key is set; callers treat it as
// "enrichment unavailable" rather than a failure.
var ErrNotConfigured = errors.New("metadata source not configured")

// Client fetches title metadata from an OMDb-compatible HTTP source.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a metadata client. An empty apiKey produces a client
// whose lookups return ErrNotConfigured.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type lookupResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	Plot       string `json:"Plot"`
	Director   string `json:"Director"`
	Actors     string `json:"Actors"`
	Rated      string `json:"Rated"`
	IMDBRating string `json:"imdbRating"`
}

// Lookup fetches enrichment metadata for a title. Year narrows the match
// when positive.
func (c *Client) Lookup(ctx context.Context, title string, year int) (*models.MetadataInfo, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("t", title)
	params.Set("plot", "short")
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata source returned %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if !strings.EqualFold(body.Response, "True") {
		return nil, fmt.Errorf("metadata lookup failed: %s", body.Error)
	}

	info := &models.MetadataInfo{
		Plot:     cleanField(body.Plot),
		Director: cleanField(body.Director),
		Rating:   cleanField(body.Rated),
	}
	for _, actor := range strings.Split(body.Actors, ",") {
		if actor = strings.TrimSpace(actor); actor != "" && actor != "N/A" {
			info.Actors = append(info.Actors, actor)
		}
	}
	if v, err := strconv.ParseFloat(cleanField(body.IMDBRating), 64); err == nil {
		info.RatingValue = &v
	}
	return info, nil
}

func cleanField(v string) string {
	v = strings.TrimSpace(v)
	if v == "N/A" {
		return ""
	}
	return v
}
