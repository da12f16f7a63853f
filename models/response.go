package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape completed without errors.
	// A rate-limited scrape is still a success.
	Success bool `json:"success"`

	// Ads holds the extracted records in discovery order.
	Ads []AdRecord `json:"ads"`

	// RateLimited is true when the page showed a block or challenge and
	// the scrape stopped early. Ads then holds what was gathered before.
	RateLimited bool `json:"rateLimited"`

	// AdsFound is len(Ads), kept for clients of the first API version.
	AdsFound int `json:"adsFound"`

	// Scrolls is the number of scroll steps performed.
	Scrolls int `json:"scrolls"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// NewScrapeResponse builds a successful response from a scrape result.
func NewScrapeResponse(res *ScrapeResult) *ScrapeResponse {
	ads := res.Ads
	if ads == nil {
		ads = []AdRecord{}
	}
	return &ScrapeResponse{
		Success:     true,
		Ads:         ads,
		RateLimited: res.RateLimited,
		AdsFound:    len(ads),
		Scrolls:     res.Scrolls,
	}
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ScrapeMs is the time spent driving the browser session.
	ScrapeMs int64 `json:"scrape_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "ok" or "degraded"
	Browser      string       `json:"browser"`
	Uptime       string       `json:"uptime"`
	Timestamp    string       `json:"timestamp"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports how many browser sessions are in use.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}
