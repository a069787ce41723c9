package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/amarmeena/anki-auto-image-finder/internal/logger"
)

const (
	ddgHomeURL   = "https://duckduckgo.com/"
	ddgImagesURL = "https://duckduckgo.com/i.js"
)

// vqdPattern extracts the request token DuckDuckGo embeds in the search page.
// The token is mandatory for the i.js image endpoint.
var vqdPattern = regexp.MustCompile(`vqd=['"]?([\d-]+)`)

// DuckDuckGoClient implements ImageSearcher against the DuckDuckGo image
// endpoint. Each Search issues a fresh token request followed by one image
// query; results are returned in provider rank order.
type DuckDuckGoClient struct {
	client        *resty.Client
	maxCandidates int
}

// DuckDuckGoConfig holds configuration for the DuckDuckGo client.
type DuckDuckGoConfig struct {
	UserAgent     string
	Timeout       time.Duration
	MaxCandidates int
}

// NewDuckDuckGoClient creates a new DuckDuckGo image search client.
func NewDuckDuckGoClient(cfg *DuckDuckGoConfig) *DuckDuckGoClient {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Referer", ddgHomeURL)

	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 5
	}

	return &DuckDuckGoClient{
		client:        client,
		maxCandidates: maxCandidates,
	}
}

// Client exposes the underlying resty client, used by tests to install a
// mock transport.
func (c *DuckDuckGoClient) Client() *resty.Client {
	return c.client
}

// ddgImageResult is one entry of the i.js response.
type ddgImageResult struct {
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// ddgImageResponse is the i.js response envelope.
type ddgImageResponse struct {
	Results []ddgImageResult `json:"results"`
	Next    string           `json:"next,omitempty"`
}

// Search implements ImageSearcher.
func (c *DuckDuckGoClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	vqd, err := c.requestToken(ctx, query)
	if err != nil {
		return nil, err
	}

	var decoded ddgImageResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"l":   "us-en",
			"o":   "json",
			"q":   query,
			"vqd": vqd,
			"p":   "1", // moderate safe search
			"f":   ",,,",
		}).
		SetResult(&decoded).
		Get(ddgImagesURL)
	if err != nil {
		return nil, fmt.Errorf("%w: image request failed: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: image request returned status %d", ErrUnavailable, resp.StatusCode())
	}
	// An empty result set is valid, but a body that is not JSON at all means
	// the endpoint shape drifted.
	if len(decoded.Results) == 0 && !json.Valid(resp.Body()) {
		return nil, fmt.Errorf("%w: undecodable image response", ErrUnavailable)
	}

	candidates := make([]Candidate, 0, c.maxCandidates)
	for _, result := range decoded.Results {
		if result.Image == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			URL:       result.Image,
			Title:     result.Title,
			SourceURL: result.URL,
		})
		if len(candidates) >= c.maxCandidates {
			break
		}
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldQuery: query,
		"candidates":      len(candidates),
	}).Debug("DuckDuckGo image search completed")

	return candidates, nil
}

// requestToken fetches the search page and extracts the vqd token required
// by the image endpoint.
func (c *DuckDuckGoClient) requestToken(ctx context.Context, query string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":   query,
			"iax": "images",
			"ia":  "images",
		}).
		Get(ddgHomeURL)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("%w: token request returned status %d", ErrUnavailable, resp.StatusCode())
	}

	match := vqdPattern.FindSubmatch(resp.Body())
	if match == nil {
		return "", fmt.Errorf("%w: vqd token not found in response", ErrUnavailable)
	}
	logger.CtxDebug(ctx, "Acquired search token %s", string(match[1]))
	return string(match[1]), nil
}
