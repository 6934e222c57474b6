// Package serp drives search result page scraping: it builds result page
// requests, extracts organic results from the returned markup and paginates
// until the requested number of results is reached or the results run out.
package serp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultEndpoint is the search endpoint queried when none is configured.
const DefaultEndpoint = "https://www.google.com/search"

// PageStride is the offset advance between successive result pages.
const PageStride = 10

var (
	// ErrFetch marks every failure to obtain a result page.
	ErrFetch = errors.New("serp: fetch failed")
	// ErrInvalidOptions is returned before any fetch when Options do not validate.
	ErrInvalidOptions = errors.New("serp: invalid options")
)

// Result is one organic search result.
type Result struct {
	URL         string `json:"url" yaml:"url"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// FetchRequest carries everything a Fetcher needs to retrieve one result page.
type FetchRequest struct {
	Term string
	// Num is the number of results still wanted; the page is requested with
	// a small pad on top of it.
	Num    int
	Lang   string
	Offset int
	// Proxy overrides the fetcher's own proxy selection when set.
	Proxy         *url.URL
	Timeout       time.Duration
	Safe          string
	SkipTLSVerify bool
	Region        string
	Render        bool
}

// Page is a fetched result page.
type Page struct {
	URL        string
	StatusCode int
	HTML       string
	Duration   time.Duration
	// Proxy is the proxy the page was fetched through, if any.
	Proxy         *url.URL
	DetectedBlock bool
	BlockSource   string
}

// Fetcher retrieves result pages. Implementations return an error wrapping
// ErrFetch on transport failures and non-2xx statuses.
type Fetcher interface {
	FetchPage(ctx context.Context, req FetchRequest) (*Page, error)
	// Name identifies the strategy in logs and metrics.
	Name() string
}

// StatusError reports a result page answered with a status outside [200,300).
type StatusError struct {
	StatusCode int
	URL        string
	// BlockSource names the block page detected in the response, if any.
	BlockSource string
}

func (e *StatusError) Error() string {
	if e.BlockSource != "" {
		return fmt.Sprintf("serp: %s returned HTTP %d (%s)", e.URL, e.StatusCode, e.BlockSource)
	}
	return fmt.Sprintf("serp: %s returned HTTP %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrFetch }

// CheckStatus returns a *StatusError for statuses outside [200,300).
func CheckStatus(page *Page) error {
	if page.StatusCode >= 200 && page.StatusCode < 300 {
		return nil
	}
	return &StatusError{StatusCode: page.StatusCode, URL: page.URL, BlockSource: page.BlockSource}
}

// ConsentCookies returns the fixed cookie pair that pre-answers the consent
// interstitial.
func ConsentCookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: "CONSENT", Value: "PENDING+987"},
		{Name: "SOCS", Value: "CAESHAgBEhIaAB"},
	}
}
