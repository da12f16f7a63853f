package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Candidate resolves one field from a card. An empty string means the
// candidate did not match and the next one should be tried.
type Candidate func(card *goquery.Selection) string

// FirstMatch evaluates candidates in order and returns the first non-empty
// result. Candidates only ever see the card, never the whole document.
func FirstMatch(card *goquery.Selection, candidates ...Candidate) string {
	for _, c := range candidates {
		if v := c(card); v != "" {
			return v
		}
	}
	return ""
}

// textOf matches selector inside the card and returns the trimmed text of
// the first element accepted by valid.
func textOf(selector string, valid func(string) bool) Candidate {
	return func(card *goquery.Selection) string {
		var out string
		card.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text != "" && valid(text) {
				out = text
				return false
			}
			return true
		})
		return out
	}
}

// attrOf matches selector inside the card and returns the first non-empty
// value among attrs on the first element that has one.
func attrOf(selector string, attrs ...string) Candidate {
	return func(card *goquery.Selection) string {
		var out string
		card.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, a := range attrs {
				if v := strings.TrimSpace(s.AttrOr(a, "")); v != "" {
					out = v
					return false
				}
			}
			return true
		})
		return out
	}
}

// hrefs returns every href inside the card matching selector, in document order.
func hrefs(card *goquery.Selection, selector string) []string {
	var out []string
	card.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("href"); ok && v != "" {
			out = append(out, v)
		}
	})
	return out
}

// cardText joins the card's text nodes with single spaces so that adjacent
// elements do not run words together. Script and style content is skipped.
func cardText(card *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range card.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
