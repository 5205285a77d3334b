package hub

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/pithecene-io/stencil/types"
)

// Marker phrases on the legacy HTML status page. Exactly one appears per page.
const (
	legacyPendingMarker   = "Template validation is in progress"
	legacyValidatedMarker = "Template has been validated"
	legacyFailedMarker    = "Template validation failed"

	// legacyErrorSectionEnd closes the error listing that follows the
	// failure marker.
	legacyErrorSectionEnd = "</article>"
)

// parseLegacyStatus classifies an HTML status page by its marker phrase.
// The failure branch is checked first so a page that also mentions
// validation in passing cannot mask a rejection.
func parseLegacyStatus(id, page string) (types.TemplateStatus, error) {
	switch {
	case strings.Contains(page, legacyFailedMarker):
		return types.TemplateStatus{ID: id, State: types.StateFailed, Errors: extractLegacyErrors(page)}, nil
	case strings.Contains(page, legacyValidatedMarker):
		return types.TemplateStatus{ID: id, State: types.StateValidated}, nil
	case strings.Contains(page, legacyPendingMarker):
		return types.TemplateStatus{ID: id, State: types.StatePending}, nil
	default:
		return types.TemplateStatus{}, fmt.Errorf("status page contains no known marker")
	}
}

// extractLegacyErrors pulls error lines from the section between the failure
// marker and the closing article tag: one error per line, markup stripped,
// whitespace trimmed, empty lines dropped.
func extractLegacyErrors(page string) []string {
	section := page[strings.Index(page, legacyFailedMarker)+len(legacyFailedMarker):]
	if end := strings.Index(section, legacyErrorSectionEnd); end >= 0 {
		section = section[:end]
	}

	var errs []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(stripTags(line))
		if line == "" {
			continue
		}
		errs = append(errs, line)
	}
	return errs
}

// stripTags removes markup from a line, keeping text content only.
// Entities are unescaped by the tokenizer.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	var b strings.Builder
	tz := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tz.Text())
		}
	}
}
