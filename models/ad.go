package models

// UnknownAdvertiser is reported when no advertiser name could be resolved.
const UnknownAdvertiser = "Unknown"

// AdRecord is one advertisement found on the ad-library page. Records are
// created once per ad id during a scrape and never updated afterwards.
type AdRecord struct {
	AdID             string `json:"ad_id"`
	AdvertiserName   string `json:"advertiser_name"`
	AdvertiserPageID string `json:"advertiser_page_id,omitempty"`
	LandingPageURL   string `json:"landing_page_url,omitempty"`
	PreviewURL       string `json:"preview_url"`
	PreviewImage     string `json:"preview_image,omitempty"`
	AdStartDate      string `json:"ad_start_date,omitempty"`
	AdCopy           string `json:"ad_copy,omitempty"`
	CTAText          string `json:"cta_text,omitempty"`
}

// ScrapeResult is the outcome of one scrape. Ads are in discovery order and
// never exceed the requested cap. RateLimited marks a scrape that stopped
// because the page showed a block or challenge.
type ScrapeResult struct {
	Ads         []AdRecord
	RateLimited bool

	// Scrolls is the number of scroll steps performed.
	Scrolls int

	// Passes is the number of extraction passes run.
	Passes int
}
