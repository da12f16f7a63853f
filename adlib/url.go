// Package adlib holds the small, pure building blocks of an ad-library
// scrape: search URL construction, browser identities, and block detection.
package adlib

import "net/url"

// LibraryURL is the ad-library search endpoint.
const LibraryURL = "https://www.facebook.com/ads/library/"

// SearchURL builds the search URL for keyword in country. The result is
// deterministic: url.Values encodes keys in sorted order.
func SearchURL(keyword, country string) string {
	q := url.Values{}
	q.Set("active_status", "active")
	q.Set("ad_type", "all")
	q.Set("country", country)
	q.Set("q", keyword)
	q.Set("media_type", "all")
	return LibraryURL + "?" + q.Encode()
}

// PreviewURL is the canonical link back to a single ad.
func PreviewURL(adID string) string {
	return LibraryURL + "?id=" + adID
}
