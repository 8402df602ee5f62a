package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const maxPageSize = 4 << 20

// ContentExtractor fetches the page and inspects forms, links, scripts and
// head metadata.
type ContentExtractor struct {
	client    *http.Client
	userAgent string
}

// NewContentExtractor creates a ContentExtractor. A nil client uses
// http.DefaultClient.
func NewContentExtractor(client *http.Client, userAgent string) *ContentExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &ContentExtractor{client: client, userAgent: userAgent}
}

func (e *ContentExtractor) Group() Group { return GroupContent }

// CacheKey is empty: page content is specific to the full URL, which the
// result cache already covers.
func (e *ContentExtractor) CacheKey(*Target) string { return "" }

func (e *ContentExtractor) Extract(ctx context.Context, t *Target) (Features, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL.String(), nil)
	if err != nil {
		return nil, err
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	root, err := html.Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return contentFeatures(goquery.NewDocumentFromNode(root)), nil
}

func contentFeatures(doc *goquery.Document) Features {
	forms := doc.Find("form")
	externalAction := false
	forms.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		action, _ := s.Attr("action")
		externalAction = IsExternal(action)
		return !externalAction
	})

	links := doc.Find("a")
	externalLinks := links.FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return IsExternal(href)
	})

	scripts := doc.Find("script[src]")
	externalScripts := scripts.FilterFunction(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		return IsExternal(src)
	})

	return Features{
		"form_count":           forms.Length(),
		"external_form_action": externalAction,
		"external_link_ratio":  ratio(externalLinks.Length(), links.Length()),
		"external_js_ratio":    ratio(externalScripts.Length(), scripts.Length()),
		"has_favicon":          doc.Find(`link[rel~="icon"]`).Length() > 0,
		"has_description":      doc.Find(`meta[name="description"]`).Length() > 0,
	}
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
