// Package fetcher retrieves raw page markup, either through a headless
// browser (to ride out anti-bot challenges) or over plain HTTP.
package fetcher

import (
	"context"
	"strings"
)

// Fetcher returns the markup of the page at url, or an error when the page
// could not be retrieved. Validation of the markup is the parser's job.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// challengeMarkers are substrings that identify an anti-bot interstitial in
// place of real content.
var challengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"verify you are human",
}

// IsChallengePage reports whether the markup or the browser's current URL
// still looks like an unresolved bot challenge.
func IsChallengePage(markup, currentURL string) bool {
	if strings.Contains(strings.ToLower(currentURL), "challenge") {
		return true
	}
	lower := strings.ToLower(markup)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
