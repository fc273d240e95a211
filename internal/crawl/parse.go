package crawl

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Page is the extract of one fetched document: the on-page SEO signals the
// suggestion prompts and the site graph care about.
type Page struct {
	URL           string   `json:"url"`
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Canonical     string   `json:"canonical,omitempty"`
	Headings      []string `json:"headings,omitempty"`
	InternalLinks []string `json:"internal_links,omitempty"`
	ExternalLinks []string `json:"external_links,omitempty"`
	WordCount     int      `json:"word_count"`
}

// ParsePage extracts the page signals from HTML. Links are resolved against
// base, fragment-stripped and deduped; internal means same host with the www
// prefix ignored.
func ParsePage(base *url.URL, r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	page := &Page{URL: base.String()}
	seenLinks := map[string]bool{}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if page.Title == "" && n.FirstChild != nil {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := attr(n, "name")
				if name == "" {
					name = attr(n, "property")
				}
				if (name == "description" || name == "og:description") && page.Description == "" {
					page.Description = strings.TrimSpace(attr(n, "content"))
				}
			case "link":
				if attr(n, "rel") == "canonical" && page.Canonical == "" {
					page.Canonical = strings.TrimSpace(attr(n, "href"))
				}
			case "h1", "h2":
				if text := textContent(n); text != "" {
					page.Headings = append(page.Headings, text)
				}
			case "a":
				if link, ok := resolveLink(base, attr(n, "href")); ok && !seenLinks[link.String()] {
					seenLinks[link.String()] = true
					if sameHost(base.Host, link.Host) {
						page.InternalLinks = append(page.InternalLinks, link.String())
					} else {
						page.ExternalLinks = append(page.ExternalLinks, link.String())
					}
				}
			case "script", "style", "noscript", "template":
				return // nothing user-visible below these
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	page.WordCount = countWords(doc)
	return page, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func countWords(doc *html.Node) int {
	inBody := false
	count := 0
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "body":
				inBody = true
			case "script", "style", "noscript", "template":
				return
			}
		}
		if inBody && n.Type == html.TextNode {
			count += len(strings.Fields(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return count
}

// resolveLink turns an href into an absolute crawlable URL, dropping
// fragments, non-HTTP schemes and self-references.
func resolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, false
	}
	u.Fragment = ""

	if u.String() == base.String() {
		return nil, false
	}
	return u, true
}

func sameHost(a, b string) bool {
	trim := func(h string) string {
		return strings.TrimPrefix(strings.ToLower(h), "www.")
	}
	return trim(a) == trim(b)
}
