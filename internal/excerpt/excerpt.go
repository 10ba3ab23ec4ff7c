// Package excerpt turns rich-text category descriptions into short plain-text
// previews.
package excerpt

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// MaxRunes is the length of an excerpt, ellipsis included.
const MaxRunes = 160

var whitespace = regexp.MustCompile(`\s+`)

// FromHTML strips markup from description and cuts it to MaxRunes.
func FromHTML(description string) string {
	if strings.TrimSpace(description) == "" {
		return ""
	}

	text := description
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		log.Debugf("Failed to parse description, using raw text: %v", err)
	} else {
		doc.Find("script, style").Remove()
		// Block elements would otherwise glue adjacent words together.
		doc.Find("p, br, li, div, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
			s.AppendHtml(" ")
		})
		text = doc.Text()
	}

	return truncate(strings.TrimSpace(whitespace.ReplaceAllString(text, " ")), MaxRunes)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRight(string(runes[:limit-1]), " ") + "…"
}
