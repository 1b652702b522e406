// Package giphy implements a small client for the GIPHY search API, used to
// attach a celebratory GIF to gratitude entries.
package giphy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultBaseURL is the GIPHY API endpoint.
const DefaultBaseURL = "https://api.giphy.com/v1"

// DefaultLimit is how many results to request per search.
const DefaultLimit = 25

// Client searches GIPHY for GIFs.
type Client struct {
	apiKey  string
	baseURL string
	rating  string
	limit   int
	http    *http.Client
}

// Opts holds configuration for creating a Client.
type Opts struct {
	// APIKey is the GIPHY API key. Falls back to GIPHY_API_KEY when empty.
	APIKey string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// Rating filters results by content rating. Defaults to "g".
	Rating string
	// Limit caps results per search. Defaults to DefaultLimit.
	Limit int
	// HTTPClient overrides the HTTP client.
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Opts)

// WithAPIKey sets the GIPHY API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithRating sets the content rating filter.
func WithRating(rating string) Option {
	return func(o *Opts) { o.Rating = rating }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// NewClient initializes a GIPHY client. The API key comes from options or the
// GIPHY_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv("GIPHY_API_KEY")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("GIPHY_API_KEY not set")
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Rating == "" {
		o.Rating = "g"
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiKey:  o.APIKey,
		baseURL: o.BaseURL,
		rating:  o.Rating,
		limit:   o.Limit,
		http:    o.HTTPClient,
	}, nil
}

// searchResponse mirrors the fields of the GIPHY search payload we use.
type searchResponse struct {
	Data []struct {
		Images struct {
			Downsized struct {
				URL string `json:"url"`
			} `json:"downsized"`
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

// Search returns the downsized URL of a GIF chosen at random from the search
// results, or an empty string when nothing matches.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("q", query)
	q.Set("limit", fmt.Sprintf("%d", c.limit))
	q.Set("rating", c.rating)

	endpoint := fmt.Sprintf("%s/gifs/search?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build GIPHY request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("GIPHY request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GIPHY returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode GIPHY response: %w", err)
	}
	if len(parsed.Data) == 0 {
		slog.Debug("GIPHY search returned no results", "query", query)
		return "", nil
	}

	pick := parsed.Data[rand.IntN(len(parsed.Data))]
	gifURL := pick.Images.Downsized.URL
	if gifURL == "" {
		gifURL = pick.Images.Original.URL
	}
	slog.Debug("GIPHY search succeeded", "query", query, "results", len(parsed.Data))
	return gifURL, nil
}
