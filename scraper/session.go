package scraper

import "github.com/use-agent/adscope/models"

// scrapeSession accumulates the ads of one scrape. It is owned by a single
// Scrape call and never shared.
type scrapeSession struct {
	limit   int
	seen    map[string]struct{}
	ads     []models.AdRecord
	scrolls int
	passes  int
}

func newScrapeSession(limit int) *scrapeSession {
	return &scrapeSession{
		limit: limit,
		seen:  make(map[string]struct{}),
	}
}

// merge appends records whose ad id has not been seen yet. The first
// sighting of an id wins; later ones are discarded, not updated. It returns
// the number of new records kept.
func (s *scrapeSession) merge(batch []models.AdRecord) int {
	s.passes++
	added := 0
	for _, ad := range batch {
		if s.full() {
			break
		}
		if _, dup := s.seen[ad.AdID]; dup {
			continue
		}
		s.seen[ad.AdID] = struct{}{}
		s.ads = append(s.ads, ad)
		added++
	}
	return added
}

func (s *scrapeSession) full() bool {
	return len(s.ads) >= s.limit
}

// result snapshots the accumulator, truncated to the limit.
func (s *scrapeSession) result(rateLimited bool) *models.ScrapeResult {
	ads := s.ads
	if len(ads) > s.limit {
		ads = ads[:s.limit]
	}
	out := make([]models.AdRecord, len(ads))
	copy(out, ads)
	return &models.ScrapeResult{
		Ads:         out,
		RateLimited: rateLimited,
		Scrolls:     s.scrolls,
		Passes:      s.passes,
	}
}
