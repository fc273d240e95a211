package arangodb

import "time"

// PageDoc is one crawled page as stored in the pages collection.
type PageDoc struct {
	URL         string
	Domain      string
	Title       string
	Description string
	Canonical   string
	Headings    []string
	WordCount   int
	CrawledAt   time.Time
}

// LinkEdge is a hyperlink between two crawled pages, identified by URL.
// Targets that were never fetched produce dangling edges; traversals
// return null vertices for those and readers skip them.
type LinkEdge struct {
	From string
	To   string
}
