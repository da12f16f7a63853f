// Package extractor turns a rendered ad-library page into ad records.
//
// The target markup has no stable contract: class names are generated and
// change between deploys. Every lookup is therefore an ordered list of
// independent candidates evaluated until one succeeds, and every field is
// resolved inside the ad's own card, never by scanning the whole page.
package extractor

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/adscope/adlib"
	"github.com/use-agent/adscope/models"
)

// adLinkSelector finds links that may point at a single ad.
const adLinkSelector = `a[href*="/ads/library"]`

var adIDPattern = regexp.MustCompile(`[?&]id=(\d+)`)

// cardStrategy resolves the card element that encloses an ad link.
type cardStrategy struct {
	name    string
	resolve func(anchor *goquery.Selection, adID string) *goquery.Selection
}

// cardSelectors are tried most specific first. Among the matching
// ancestors the outermost one holding no other ad is used, since some of
// these classes also sit on small wrappers around the link.
var cardSelectors = []string{
	`[data-testid="ad_library_card"]`,
	`div[class*="xh8yej3"]`,
	`div[class*="x1qjc9v5"]`,
	`div[class*="x1dr59a3"]`,
}

var cardStrategies = buildCardStrategies()

func buildCardStrategies() []cardStrategy {
	strategies := make([]cardStrategy, 0, len(cardSelectors)+1)
	for _, sel := range cardSelectors {
		m := cascadia.MustCompile(sel)
		strategies = append(strategies, cardStrategy{
			name: sel,
			resolve: func(anchor *goquery.Selection, adID string) *goquery.Selection {
				return outermostOwnMatch(anchor, m, adID)
			},
		})
	}
	return append(strategies, cardStrategy{name: "structural", resolve: outermostOwnAncestor})
}

// Extract parses rendered markup and returns one record per distinct ad, in
// document order. It never fails: unparseable markup yields no records.
func Extract(rawHTML string) []models.AdRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		slog.Debug("extractor: failed to parse page markup", "error", err)
		return nil
	}
	return FromDocument(doc)
}

// FromDocument extracts ad records from an already parsed document.
func FromDocument(doc *goquery.Document) []models.AdRecord {
	var ads []models.AdRecord
	seen := make(map[string]struct{})

	doc.Find(adLinkSelector).Each(func(_ int, anchor *goquery.Selection) {
		adID := adIDFromHref(anchor.AttrOr("href", ""))
		if adID == "" {
			return
		}
		if _, dup := seen[adID]; dup {
			return
		}

		// A link with no usable card, e.g. inside a summary listing several
		// ads, leaves the id open for a later link.
		if rec, ok := extractAd(anchor, adID); ok {
			seen[adID] = struct{}{}
			ads = append(ads, rec)
		}
	})
	return ads
}

// extractAd resolves the card for one ad link and reads its fields. A panic
// while walking a malformed card drops that card only.
func extractAd(anchor *goquery.Selection, adID string) (rec models.AdRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("extractor: skipping malformed ad card", "ad_id", adID, "panic", r)
			ok = false
		}
	}()

	card := resolveCard(anchor, adID)
	if card == nil {
		slog.Debug("extractor: no card found for ad", "ad_id", adID)
		return models.AdRecord{}, false
	}
	return extractCard(adID, card), true
}

func resolveCard(anchor *goquery.Selection, adID string) *goquery.Selection {
	for _, s := range cardStrategies {
		if card := s.resolve(anchor, adID); card != nil && card.Length() > 0 {
			return card
		}
	}
	return nil
}

// outermostOwnAncestor climbs from the link towards <body> and returns the
// largest ancestor that holds no other ad. It does not rely on class names.
func outermostOwnAncestor(anchor *goquery.Selection, adID string) *goquery.Selection {
	var best *goquery.Selection
	for cur := anchor.Parent(); cur.Length() > 0; cur = cur.Parent() {
		name := goquery.NodeName(cur)
		if name == "body" || name == "html" {
			break
		}
		if containsOtherAd(cur, adID) {
			break
		}
		best = cur
	}
	return best
}

// outermostOwnMatch returns the outermost ancestor of the link matching m
// that holds no other ad, or nil when the nearest match already does.
func outermostOwnMatch(anchor *goquery.Selection, m goquery.Matcher, adID string) *goquery.Selection {
	var best *goquery.Selection
	matches := anchor.ParentsMatcher(m)
	for i := 0; i < matches.Length(); i++ {
		cur := matches.Eq(i)
		if containsOtherAd(cur, adID) {
			break
		}
		best = cur
	}
	return best
}

// containsOtherAd reports whether sel holds a link to an ad other than adID.
func containsOtherAd(sel *goquery.Selection, adID string) bool {
	other := false
	sel.Find(adLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if id := adIDFromHref(a.AttrOr("href", "")); id != "" && id != adID {
			other = true
			return false
		}
		return true
	})
	return other
}

func adIDFromHref(href string) string {
	if !strings.Contains(href, "/ads/library") {
		return ""
	}
	m := adIDPattern.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}

// extractCard reads every field of one ad from its card.
func extractCard(adID string, card *goquery.Selection) models.AdRecord {
	text := cardText(card)

	advertiser := FirstMatch(card, advertiserCandidates...)
	if advertiser == "" {
		advertiser = models.UnknownAdvertiser
	}

	return models.AdRecord{
		AdID:             adID,
		AdvertiserName:   advertiser,
		AdvertiserPageID: advertiserPageID(card),
		LandingPageURL:   FirstMatch(card, landingCandidates...),
		PreviewURL:       adlib.PreviewURL(adID),
		PreviewImage:     FirstMatch(card, imageCandidates...),
		AdStartDate:      startDate(text),
		AdCopy:           truncateRunes(FirstMatch(card, copyCandidates...), maxCopyRunes),
		CTAText:          ctaText(text),
	}
}
