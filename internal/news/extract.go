package news

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageAttrs is the attribute priority for image references: lazy-loaded
// sources beat the direct src, which beats the responsive srcset.
var imageAttrs = []string{"data-src", "src", "srcset"}

// ExtractListing parses a listing page and returns every candidate the
// source's title selector matches. Capping to the source's MaxArticles is the
// caller's job, not the extractor's. Elements without an href are dropped.
func ExtractListing(markup []byte, source Source) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing markup: %w", err)
	}

	var candidates []Candidate
	doc.Find(source.TitleSelector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		candidates = append(candidates, Candidate{Title: title, Link: href})
	})
	return candidates, nil
}

// ExtractImageRef inspects a detail page for the source's image element and
// returns its raw reference, which may be relative or a lazy-load value.
// Returns the empty string when no image element matches.
func ExtractImageRef(markup []byte, source Source) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return ""
	}
	selector := source.ImageSelector
	if selector == "" {
		selector = "img"
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	for _, attr := range imageAttrs {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// AbsoluteURL joins a possibly-relative reference against a base URL.
// Returns the empty string when either side fails to parse.
func AbsoluteURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}
