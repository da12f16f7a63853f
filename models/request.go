package models

import (
	"strings"
)

// Request limits and defaults.
const (
	DefaultCountry     = "US"
	DefaultMaxAds      = 50
	DefaultScrollCount = 5

	MaxAdsLimit      = 500
	ScrollCountLimit = 50
)

// ScrapeRequest is the payload for POST /api/v1/scrape.
//
// Field names keep the camelCase shape existing clients already send.
type ScrapeRequest struct {
	// Keyword is the ad-library search term. Required, non-blank.
	Keyword string `json:"keyword"`

	// Country is a two-letter market code, or "ALL". Default: "US".
	Country string `json:"country,omitempty"`

	// MaxAds caps the number of ads returned. Default: 50. An explicit
	// zero is honored and yields an empty ad list.
	MaxAds *int `json:"maxAds,omitempty"`

	// ScrollCount is the number of lazy-load scroll steps. Default: 5.
	ScrollCount *int `json:"scrollCount,omitempty"`

	// MaxAge enables the response cache: a cached result younger than
	// MaxAge milliseconds is returned without launching a browser.
	MaxAge int `json:"max_age,omitempty"`

	// APIKey is accepted as a body-level fallback for clients that
	// cannot set headers. It is never echoed back.
	APIKey string `json:"apiKey,omitempty"`
}

// Defaults applies default values to unset fields and normalizes the rest.
func (r *ScrapeRequest) Defaults() {
	r.Keyword = strings.TrimSpace(r.Keyword)
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	if r.Country == "" {
		r.Country = DefaultCountry
	}
	if r.MaxAds == nil {
		n := DefaultMaxAds
		r.MaxAds = &n
	}
	if r.ScrollCount == nil {
		n := DefaultScrollCount
		r.ScrollCount = &n
	}
}

// Validate checks the request after Defaults has run. It never touches
// the network, so a failing request costs nothing.
func (r *ScrapeRequest) Validate() error {
	if strings.TrimSpace(r.Keyword) == "" {
		return NewScrapeError(ErrCodeInvalidInput, "keyword is required", nil)
	}
	if !validCountry(r.Country) {
		return NewScrapeError(ErrCodeInvalidInput, "country must be a two-letter code or ALL", nil)
	}
	if r.MaxAds != nil && (*r.MaxAds < 0 || *r.MaxAds > MaxAdsLimit) {
		return NewScrapeError(ErrCodeInvalidInput, "maxAds must be between 0 and 500", nil)
	}
	if r.ScrollCount != nil && (*r.ScrollCount < 0 || *r.ScrollCount > ScrollCountLimit) {
		return NewScrapeError(ErrCodeInvalidInput, "scrollCount must be between 0 and 50", nil)
	}
	if r.MaxAge < 0 {
		return NewScrapeError(ErrCodeInvalidInput, "max_age must not be negative", nil)
	}
	return nil
}

// Limit returns the effective ad cap.
func (r *ScrapeRequest) Limit() int {
	if r.MaxAds == nil {
		return DefaultMaxAds
	}
	return *r.MaxAds
}

// Scrolls returns the effective scroll step count.
func (r *ScrapeRequest) Scrolls() int {
	if r.ScrollCount == nil {
		return DefaultScrollCount
	}
	return *r.ScrollCount
}

func validCountry(c string) bool {
	if c == "ALL" {
		return true
	}
	if len(c) != 2 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}
