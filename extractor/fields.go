package extractor

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxCopyRunes = 500

// advertiserLabels are UI strings that sit where the advertiser name
// usually is and must not be mistaken for it.
var advertiserLabels = map[string]struct{}{
	"sponsored":           {},
	"active":              {},
	"inactive":            {},
	"see ad details":      {},
	"see summary details": {},
	"ad details":          {},
}

var advertiserCandidates = []Candidate{
	textOf(`span[class*="x1lliihq"]`, validAdvertiser),
	textOf(`strong`, validAdvertiser),
	textOf(`a[href*="/ads/library/?active_status"] span`, validAdvertiser),
	textOf(`div[class*="x1heor9g"] span`, validAdvertiser),
	textOf(`a[href*="view_all_page_id"]`, validAdvertiser),
}

func validAdvertiser(s string) bool {
	if utf8.RuneCountInString(s) <= 1 || utf8.RuneCountInString(s) > 200 {
		return false
	}
	if _, label := advertiserLabels[strings.ToLower(s)]; label {
		return false
	}
	lower := strings.ToLower(s)
	return !strings.HasPrefix(lower, "library id") && !strings.Contains(lower, "started running")
}

var pageIDPattern = regexp.MustCompile(`[?&](?:view_all_page_id|page_id)=(\d+)`)

func advertiserPageID(card *goquery.Selection) string {
	for _, href := range hrefs(card, "a[href]") {
		if m := pageIDPattern.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}
	return ""
}

var landingCandidates = []Candidate{redirectTarget, externalLink}

var redirectParam = regexp.MustCompile(`[?&]u=([^&]+)`)

// redirectTarget decodes the destination of a link-shim redirect.
func redirectTarget(card *goquery.Selection) string {
	for _, href := range hrefs(card, `a[href*="l.facebook.com/l.php"]`) {
		m := redirectParam.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		dest, err := url.PathUnescape(m[1])
		if err != nil {
			continue
		}
		if isAbsoluteHTTP(dest) {
			return dest
		}
	}
	return ""
}

// externalLink returns the first outbound link that leaves the platform.
func externalLink(card *goquery.Selection) string {
	for _, href := range hrefs(card, `a[href^="http"]`) {
		u, err := url.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if !ownDomain(u.Hostname()) {
			return href
		}
	}
	return ""
}

var ownDomains = []string{"facebook.com", "fb.com", "fb.me", "fbcdn.net"}

func ownDomain(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range ownDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var imageCandidates = []Candidate{
	attrOf(`img[src*="scontent"]`, "src"),
	attrOf(`img[src*="fbcdn"]`, "src"),
	attrOf(`video[src*="scontent"]`, "src", "poster"),
	attrOf(`video[src*="fbcdn"]`, "src", "poster"),
	attrOf(`video[poster]`, "poster"),
}

var startDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`Started running on ([A-Z][a-z]{2,8}\.? \d{1,2}, \d{4})`),
	regexp.MustCompile(`Started running on (\d{1,2} [A-Z][a-z]{2,8}\.? \d{4})`),
	regexp.MustCompile(`Running since ([A-Z][a-z]{2,8}\.? \d{1,2}, \d{4})`),
}

func startDate(text string) string {
	for _, p := range startDatePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// copyBoilerplate marks text blocks that belong to the card chrome.
var copyBoilerplate = []string{
	"Started running on",
	"Library ID",
	"See ad details",
	"See summary details",
	"This ad has multiple versions",
}

var copyCandidates = []Candidate{
	textOf(`div[class*="x1iorvi4"]`, validCopy),
	textOf(`div[class*="xdj266r"]`, validCopy),
	textOf(`span[class*="x193iq5w"]`, validCopy),
	textOf(`div[style*="pre-wrap"]`, validCopy),
}

func validCopy(s string) bool {
	if utf8.RuneCountInString(s) <= 20 {
		return false
	}
	for _, b := range copyBoilerplate {
		if strings.Contains(s, b) {
			return false
		}
	}
	return true
}

// ctaLabels are checked in order; the first label present in the card wins.
var ctaLabels = []string{
	"Shop Now",
	"Learn More",
	"Sign Up",
	"Get Offer",
	"Buy Now",
	"Order Now",
	"Subscribe",
	"Book Now",
	"Apply Now",
	"Download",
	"Contact Us",
	"Send Message",
	"Install Now",
	"Donate Now",
	"Watch More",
}

func ctaText(text string) string {
	for _, label := range ctaLabels {
		if strings.Contains(text, label) {
			return label
		}
	}
	return ""
}
