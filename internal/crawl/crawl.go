// Package crawl fetches a small breadth-first sample of a website and
// extracts the on-page signals that feed keyword suggestions and the
// site graph.
package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config bounds a crawl. All fields are required; see core/config for the
// environment-driven defaults.
type Config struct {
	UserAgent    string
	MaxPages     int
	MaxDepth     int
	MaxBodyBytes int64
	Timeout      time.Duration
}

// Site is the result of one crawl: every page fetched, in BFS order. The
// start page is always Pages[0].
type Site struct {
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Pages     []Page    `json:"pages"`
	CrawledAt time.Time `json:"crawled_at"`
}

type Crawler struct {
	client *http.Client
	cfg    Config
}

func New(cfg Config) *Crawler {
	return &Crawler{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// Crawl fetches rawURL and then same-host pages breadth-first until MaxPages
// or MaxDepth is hit. Broken pages past the first are logged and skipped; a
// start page that cannot be fetched fails the whole crawl.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) (*Site, error) {
	start, err := NormalizeStart(rawURL)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", rawURL, err)
	}

	type item struct {
		u     *url.URL
		depth int
	}

	queue := []item{{u: start, depth: 0}}
	seen := map[string]bool{start.String(): true}
	site := &Site{
		URL:       start.String(),
		Domain:    strings.TrimPrefix(strings.ToLower(start.Host), "www."),
		CrawledAt: time.Now().UTC(),
	}

	for len(queue) > 0 && len(site.Pages) < c.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl %s: %w", rawURL, err)
		}

		it := queue[0]
		queue = queue[1:]

		page, err := c.fetchPage(ctx, it.u)
		if err != nil {
			if len(site.Pages) == 0 {
				return nil, fmt.Errorf("crawl %s: %w", rawURL, err)
			}
			slog.WarnContext(ctx, "skipping unreachable page",
				"url", it.u.String(),
				"error", err)
			continue
		}
		site.Pages = append(site.Pages, *page)

		if it.depth >= c.cfg.MaxDepth {
			continue
		}
		for _, link := range page.InternalLinks {
			lu, err := url.Parse(link)
			if err != nil || seen[lu.String()] {
				continue
			}
			seen[lu.String()] = true
			queue = append(queue, item{u: lu, depth: it.depth + 1})
		}
	}

	return site, nil
}

func (c *Crawler) fetchPage(ctx context.Context, u *url.URL) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	body := io.LimitReader(resp.Body, c.cfg.MaxBodyBytes)
	return ParsePage(u, body)
}

// Summary flattens a crawl into the externalData payload stored on the
// interview and fed into suggestion prompts.
func (s *Site) Summary() map[string]any {
	summary := map[string]any{
		"url":       s.URL,
		"domain":    s.Domain,
		"pageCount": len(s.Pages),
		"crawledAt": s.CrawledAt.Format(time.RFC3339),
	}
	if len(s.Pages) > 0 {
		summary["title"] = s.Pages[0].Title
		summary["description"] = s.Pages[0].Description
	}

	var headings []string
	words := 0
	for _, p := range s.Pages {
		words += p.WordCount
		for _, h := range p.Headings {
			if len(headings) < 12 {
				headings = append(headings, h)
			}
		}
	}
	summary["headings"] = headings
	summary["wordCount"] = words
	return summary
}

// NormalizeStart mirrors the URL normalization applied at answer validation,
// so a stored websiteUrl answer is always crawlable as-is. The crawl action
// also uses it to key the per-URL crawl cache.
func NormalizeStart(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("empty URL")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL %q has no host", rawURL)
	}
	u.Fragment = ""
	return u, nil
}
