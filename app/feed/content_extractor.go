package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	extractTimeout = 10 * time.Second

	// Minimum visible text for a semantic-selector candidate.
	selectorMinLength = 200
	// Minimum visible text for the generic largest-block fallback.
	blockMinLength = 300
	// Blocks with more anchors than this are treated as link farms.
	maxAnchorCount = 20
)

// Selectors probed in priority order before falling back to the generic
// largest-block heuristic.
var semanticSelectors = []string{
	"article",
	"[role=article]",
	".post-content",
	".article-content",
	".entry-content",
	".post-body",
	".article-body",
	".content",
	"main",
}

// Elements stripped before any candidate probing.
var noiseSelectors = []string{
	"script", "style", "noscript", "iframe",
	"nav", "header", "footer", "aside",
	".nav", ".navbar", ".menu", ".sidebar",
	".ad", ".ads", ".advertisement", ".comments",
}

// siteRule is a named-origin special case for platforms whose markup is
// nonstandard enough that the generic heuristics fail.
type siteRule struct {
	contentSelector string
	titleSelector   string
}

var siteRules = map[string]siteRule{
	"mp.weixin.qq.com": {
		contentSelector: "#js_content",
		titleSelector:   "#activity-name",
	},
}

type ContentExtractor struct {
	clients   ClientProvider
	userAgent string
}

func NewContentExtractor(clients ClientProvider, userAgent string) *ContentExtractor {
	return &ContentExtractor{
		clients:   clients,
		userAgent: userAgent,
	}
}

// Extract fetches the destination page and recovers full article markup.
// The strategies are ordered: structured sites are handled cheaply and
// deterministically before the generic heuristics run, and the whole-body
// last resort always yields something, so extraction only fails when the
// page itself is unreachable.
func (e *ContentExtractor) Extract(ctx context.Context, pageURL string) (*Extraction, error) {
	data, err := e.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	return e.ExtractFromHTML(data, pageURL)
}

func (e *ContentExtractor) ExtractFromHTML(data []byte, pageURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := pageTitle(doc)

	if result := e.applySiteRule(doc, pageURL); result != nil {
		if result.Title == "" {
			result.Title = title
		}
		return result, nil
	}

	stripNoise(doc)

	for _, probe := range []func(*goquery.Document) string{
		e.probeSemanticSelectors,
		e.probeLargestBlock,
	} {
		if content := probe(doc); content != "" {
			return &Extraction{Content: content, Title: title}, nil
		}
	}

	if content := e.probeReadability(data, pageURL); content != "" {
		return &Extraction{Content: content, Title: title}, nil
	}

	// Last resort: the whole page body.
	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		body = string(data)
	}

	return &Extraction{Content: body, Title: title}, nil
}

func (e *ContentExtractor) applySiteRule(doc *goquery.Document, pageURL string) *Extraction {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	rule, ok := siteRules[strings.ToLower(u.Hostname())]
	if !ok {
		return nil
	}

	sel := doc.Find(rule.contentSelector).First()
	if sel.Length() == 0 {
		return nil
	}

	content, err := goquery.OuterHtml(sel)
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(doc.Find(rule.titleSelector).First().Text())

	return &Extraction{Content: content, Title: title}
}

func (e *ContentExtractor) probeSemanticSelectors(doc *goquery.Document) string {
	for _, selector := range semanticSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		text := visibleText(sel)
		if len(text) <= selectorMinLength {
			continue
		}
		if looksLikeNavigation(sel) {
			continue
		}

		if content, err := goquery.OuterHtml(sel); err == nil {
			slog.Debug("Content extracted via selector", "selector", selector, "length", len(text))
			return content
		}
	}

	return ""
}

// probeLargestBlock scans block-level elements and keeps the longest one
// that is not a link farm.
func (e *ContentExtractor) probeLargestBlock(doc *goquery.Document) string {
	var best *goquery.Selection
	bestScore := 0

	doc.Find("div, section, td").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find("a").Length() > maxAnchorCount {
			return
		}

		score := len(visibleText(sel))
		if score > bestScore {
			bestScore = score
			best = sel
		}
	})

	if best == nil || bestScore <= blockMinLength {
		return ""
	}

	content, err := goquery.OuterHtml(best)
	if err != nil {
		return ""
	}

	slog.Debug("Content extracted via largest block", "length", bestScore)
	return content
}

func (e *ContentExtractor) probeReadability(data []byte, pageURL string) string {
	u, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(data), u)
	if err != nil || article.Content == "" {
		return ""
	}

	slog.Debug("Content extracted via readability", "length", len(article.Content))
	return article.Content
}

func (e *ContentExtractor) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.clients.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func stripNoise(doc *goquery.Document) {
	for _, selector := range noiseSelectors {
		doc.Find(selector).Remove()
	}
}

func visibleText(sel *goquery.Selection) string {
	return strings.TrimSpace(strings.Join(strings.Fields(sel.Text()), " "))
}

// looksLikeNavigation flags candidates whose text is mostly link text.
func looksLikeNavigation(sel *goquery.Selection) bool {
	total := len(visibleText(sel))
	if total == 0 {
		return true
	}

	linkText := 0
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkText += len(visibleText(a))
	})

	return float64(linkText)/float64(total) > 0.5
}

func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("meta[property='og:title']").AttrOr("content", "")); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
