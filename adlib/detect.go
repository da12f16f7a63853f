package adlib

import "strings"

// BlockSignatures are lower-case phrases that show the page is refusing
// normal access. Matching is a substring scan, so false negatives are
// possible; a false positive only ends the scrape early.
var BlockSignatures = []string{
	"rate limit",
	"too many requests",
	"try again later",
	"temporarily blocked",
	"captcha",
	"verify you're human",
	"verify you’re human",
	"unusual traffic",
}

// BlockSignature returns the first block phrase found in content, or "".
func BlockSignature(content string) string {
	lower := strings.ToLower(content)
	for _, sig := range BlockSignatures {
		if strings.Contains(lower, sig) {
			return sig
		}
	}
	return ""
}

// IsBlocked reports whether content carries any block or challenge phrase,
// regardless of letter case.
func IsBlocked(content string) bool {
	return BlockSignature(content) != ""
}
