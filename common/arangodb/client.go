// Package arangodb stores crawled websites as a graph: one document per
// page, one edge per internal link. The worker provisions the database,
// collections and named graph at boot; the crawl action replaces a site's
// subgraph on every successful crawl.
package arangodb

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
)

const (
	pagesCollection = "pages"
	linksCollection = "links"
	graphName       = "sitegraph"
)

type Client interface {
	// Setup operations
	EnsureDatabase(ctx context.Context) error
	EnsureCollections(ctx context.Context) error
	EnsureGraph(ctx context.Context) error

	// Write operations (for the crawl action)
	ReplaceSite(ctx context.Context, domain string, pages []PageDoc, links []LinkEdge) error
	RemoveSite(ctx context.Context, domain string) error

	// Utility
	Close() error
}

type Config struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	return nil
}

type client struct {
	conn         connection.Connection
	arangoClient arangodb.Client
	db           arangodb.Database
	cfg          Config
}

func New(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arangodb config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL}) // round robins from the urls. we just have one for now
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("arangodb auth: %w", err)
	}

	arangoClient := arangodb.NewClient(conn)

	c := &client{
		conn:         conn,
		arangoClient: arangoClient,
		cfg:          cfg,
	}

	return c, nil
}

func (c *client) Close() error {
	return nil
}

func (c *client) EnsureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := c.arangoClient.DatabaseExists(ctx, c.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}

	if !exists {
		_, err = c.arangoClient.CreateDatabase(ctx, c.cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created",
			"database", c.cfg.Database,
			"duration_ms", time.Since(start).Milliseconds())
	}

	db, err := c.arangoClient.GetDatabase(ctx, c.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("get database: %w", err)
	}
	c.db = db

	return nil
}

func (c *client) EnsureCollections(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	if err := c.ensureCollection(ctx, pagesCollection, false); err != nil {
		return err
	}
	return c.ensureCollection(ctx, linksCollection, true)
}

func (c *client) ensureCollection(ctx context.Context, name string, isEdge bool) error {
	exists, err := c.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s exists: %w", name, err)
	}

	if !exists {
		props := &arangodb.CreateCollectionPropertiesV2{}
		if isEdge {
			colType := arangodb.CollectionTypeEdge
			props.Type = &colType
		} else {
			colType := arangodb.CollectionTypeDocument
			props.Type = &colType
		}

		_, err = c.db.CreateCollectionV2(ctx, name, props)
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		slog.InfoContext(ctx, "arangodb collection created",
			"collection", name,
			"is_edge", isEdge)
	}

	return nil
}

func (c *client) EnsureGraph(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	exists, err := c.db.GraphExists(ctx, graphName)
	if err != nil {
		return fmt.Errorf("check graph exists: %w", err)
	}

	if exists {
		return nil
	}

	graphDef := &arangodb.GraphDefinition{
		Name: graphName,
		EdgeDefinitions: []arangodb.EdgeDefinition{
			{Collection: linksCollection, From: []string{pagesCollection}, To: []string{pagesCollection}},
		},
	}

	_, err = c.db.CreateGraph(ctx, graphName, graphDef, nil)
	if err != nil {
		return fmt.Errorf("create graph: %w", err)
	}

	slog.InfoContext(ctx, "arangodb graph created", "graph", graphName)
	return nil
}

// ReplaceSite swaps a domain's subgraph for a fresh crawl. Removal first
// keeps recrawls idempotent; documents of other domains are untouched.
func (c *client) ReplaceSite(ctx context.Context, domain string, pages []PageDoc, links []LinkEdge) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}

	start := time.Now()

	if err := c.RemoveSite(ctx, domain); err != nil {
		return err
	}
	if err := c.ingestPages(ctx, pages); err != nil {
		return err
	}
	if err := c.ingestLinks(ctx, domain, links); err != nil {
		return err
	}

	slog.InfoContext(ctx, "arangodb site graph replaced",
		"domain", domain,
		"pages", len(pages),
		"links", len(links),
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

func (c *client) RemoveSite(ctx context.Context, domain string) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}

	queries := []string{
		`FOR l IN links FILTER l.domain == @domain REMOVE l IN links`,
		`FOR p IN pages FILTER p.domain == @domain REMOVE p IN pages`,
	}
	for _, query := range queries {
		cursor, err := c.db.Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]any{"domain": domain},
		})
		if err != nil {
			return fmt.Errorf("remove site %s: %w", domain, err)
		}
		cursor.Close()
	}

	return nil
}

// ingestPages inserts page documents. Duplicates (same _key) are silently
// ignored; ReplaceSite removes the domain first so a recrawl never sees them.
func (c *client) ingestPages(ctx context.Context, pages []PageDoc) error {
	if len(pages) == 0 {
		return nil
	}

	col, err := c.db.GetCollection(ctx, pagesCollection, nil)
	if err != nil {
		return fmt.Errorf("get collection %s: %w", pagesCollection, err)
	}

	docs := make([]map[string]any, len(pages))
	for i, page := range pages {
		docs[i] = map[string]any{
			"_key":        makeKey(page.URL),
			"url":         page.URL,
			"domain":      page.Domain,
			"title":       page.Title,
			"description": page.Description,
			"canonical":   page.Canonical,
			"headings":    page.Headings,
			"word_count":  page.WordCount,
			"crawled_at":  page.CrawledAt.UTC().Format(time.RFC3339),
		}
	}

	reader, err := col.CreateDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("create page documents: %w", err)
	}

	// Consume all responses (ignoring errors for duplicate keys)
	for {
		_, readErr := reader.Read()
		if readErr != nil {
			break
		}
	}

	slog.DebugContext(ctx, "arangodb pages ingested", "count", len(pages))
	return nil
}

func (c *client) ingestLinks(ctx context.Context, domain string, links []LinkEdge) error {
	if len(links) == 0 {
		return nil
	}

	col, err := c.db.GetCollection(ctx, linksCollection, nil)
	if err != nil {
		return fmt.Errorf("get collection %s: %w", linksCollection, err)
	}

	docs := make([]map[string]any, len(links))
	for i, link := range links {
		docs[i] = map[string]any{
			"_key":   makeEdgeKey(link.From, link.To),
			"_from":  fmt.Sprintf("%s/%s", pagesCollection, makeKey(link.From)),
			"_to":    fmt.Sprintf("%s/%s", pagesCollection, makeKey(link.To)),
			"domain": domain,
		}
	}

	reader, err := col.CreateDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("create link documents: %w", err)
	}

	// Consume all responses (ignoring errors for duplicate keys)
	for {
		_, readErr := reader.Read()
		if readErr != nil {
			break
		}
	}

	slog.DebugContext(ctx, "arangodb links ingested", "count", len(links))
	return nil
}

func makeKey(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}

func makeEdgeKey(from, to string) string {
	combined := from + "->" + to
	hash := md5.Sum([]byte(combined))
	return hex.EncodeToString(hash[:])[:16]
}
