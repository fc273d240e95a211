package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rankwell.app/onboard/common/arangodb"
	"rankwell.app/onboard/internal/crawl"
)

// SiteCrawler fetches and parses a website. Satisfied by *crawl.Crawler.
type SiteCrawler interface {
	Crawl(ctx context.Context, rawURL string) (*crawl.Site, error)
}

// SiteGraph persists crawled pages. Satisfied by arangodb.Client; nil when
// the graph store is not configured.
type SiteGraph interface {
	ReplaceSite(ctx context.Context, domain string, pages []arangodb.PageDoc, links []arangodb.LinkEdge) error
}

type crawlHandler struct {
	crawler  SiteCrawler
	graph    SiteGraph
	credits  CreditLedger
	cacheTTL time.Duration
}

// NewCrawlHandler wires the crawlWebsite action. graph may be nil; the page
// graph is enrichment and never blocks the interview.
func NewCrawlHandler(crawler SiteCrawler, graph SiteGraph, credits CreditLedger, cacheTTL time.Duration) Handler {
	return &crawlHandler{
		crawler:  crawler,
		graph:    graph,
		credits:  credits,
		cacheTTL: cacheTTL,
	}
}

func (h *crawlHandler) Name() Name {
	return CrawlWebsite
}

func (h *crawlHandler) Invoke(ctx context.Context, actx *Context) (*Result, error) {
	rawURL, _ := actx.Responses["websiteUrl"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("website URL not answered yet")
	}
	start, err := crawl.NormalizeStart(rawURL)
	if err != nil {
		return nil, fmt.Errorf("crawl website: %w", err)
	}
	cacheKey := start.String()

	// A fresh recrawl of the same URL is a no-op: serve the memo and skip
	// authorization entirely so cache hits never cost credits.
	if entry, ok := h.cachedSummary(actx.ExternalData, cacheKey); ok {
		slog.InfoContext(ctx, "crawl served from cache",
			"interview_id", actx.InterviewID,
			"url", cacheKey)
		return &Result{StoreInExternalData: map[string]any{
			KeyCrawledData: entry,
		}}, nil
	}

	decision, err := h.credits.Authorize(ctx, actx.AccountID, OpCrawlSite)
	if err != nil {
		return nil, fmt.Errorf("authorize crawl: %w", err)
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%s: %w", decision.Reason, ErrDenied)
	}

	site, err := h.crawler.Crawl(ctx, cacheKey)
	if err != nil {
		return nil, fmt.Errorf("crawl website: %w", err)
	}

	if h.graph != nil {
		pages, links := siteGraphDocs(site)
		if err := h.graph.ReplaceSite(ctx, site.Domain, pages, links); err != nil {
			slog.ErrorContext(ctx, "site graph persist failed",
				"interview_id", actx.InterviewID,
				"domain", site.Domain,
				"error", err)
		}
	}

	if err := h.credits.Debit(ctx, actx.AccountID, OpCrawlSite); err != nil {
		slog.ErrorContext(ctx, "crawl debit failed",
			"interview_id", actx.InterviewID,
			"account_id", actx.AccountID,
			"error", err)
	}

	summary := site.Summary()
	summary["cachedAt"] = time.Now().UTC().Format(time.RFC3339)

	cache := copyCache(actx.ExternalData[KeyCrawlCache])
	cache[cacheKey] = summary

	slog.InfoContext(ctx, "website crawled",
		"interview_id", actx.InterviewID,
		"domain", site.Domain,
		"pages", len(site.Pages))

	return &Result{StoreInExternalData: map[string]any{
		KeyCrawledData: summary,
		KeyCrawlCache:  cache,
	}}, nil
}

// cachedSummary returns the memoized crawl for key if it is younger than the
// TTL. Entries with a missing or unparsable timestamp never match.
func (h *crawlHandler) cachedSummary(external map[string]any, key string) (map[string]any, bool) {
	cache, _ := external[KeyCrawlCache].(map[string]any)
	entry, _ := cache[key].(map[string]any)
	if entry == nil {
		return nil, false
	}

	cachedAt, _ := entry["cachedAt"].(string)
	ts, err := time.Parse(time.RFC3339, cachedAt)
	if err != nil || time.Since(ts) > h.cacheTTL {
		return nil, false
	}
	return entry, true
}

func copyCache(v any) map[string]any {
	existing, _ := v.(map[string]any)
	cache := make(map[string]any, len(existing)+1)
	for k, val := range existing {
		cache[k] = val
	}
	return cache
}

// siteGraphDocs flattens a crawl into page documents plus one edge per
// internal link, including links to pages the crawl never reached.
func siteGraphDocs(site *crawl.Site) ([]arangodb.PageDoc, []arangodb.LinkEdge) {
	pages := make([]arangodb.PageDoc, 0, len(site.Pages))
	var links []arangodb.LinkEdge

	for _, p := range site.Pages {
		pages = append(pages, arangodb.PageDoc{
			URL:         p.URL,
			Domain:      site.Domain,
			Title:       p.Title,
			Description: p.Description,
			Canonical:   p.Canonical,
			Headings:    p.Headings,
			WordCount:   p.WordCount,
			CrawledAt:   site.CrawledAt,
		})
		for _, to := range p.InternalLinks {
			links = append(links, arangodb.LinkEdge{From: p.URL, To: to})
		}
	}

	return pages, links
}
