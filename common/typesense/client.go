// Package typesense maintains the site directory: one searchable document
// per provisioned site. The worker upserts after provisioning; the
// competitor action searches it to enrich LLM suggestions.
package typesense

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"
)

type Client interface {
	EnsureCollection(ctx context.Context) error
	UpsertSite(ctx context.Context, doc SiteDocument) error
	SearchSites(ctx context.Context, query string, limit int) ([]SiteDocument, error)
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("typesense URL is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("typesense API key is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("typesense collection name is required")
	}
	return nil
}

// SiteDocument is the directory entry for one site.
type SiteDocument struct {
	ID          string   `json:"id"`
	AccountID   string   `json:"account_id"`
	Domain      string   `json:"domain"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords"`
}

type client struct {
	ts  *typesense.Client
	cfg Config
}

func New(cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("typesense config: %w", err)
	}

	ts := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	return &client{ts: ts, cfg: cfg}, nil
}

func (c *client) EnsureCollection(ctx context.Context) error {
	if _, err := c.ts.Collection(c.cfg.Collection).Retrieve(ctx); err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: c.cfg.Collection,
		Fields: []api.Field{
			{Name: "account_id", Type: "string"},
			{Name: "domain", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "keywords", Type: "string[]"},
		},
	}

	if _, err := c.ts.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("create collection %s: %w", c.cfg.Collection, err)
	}

	slog.InfoContext(ctx, "typesense collection created", "collection", c.cfg.Collection)
	return nil
}

func (c *client) UpsertSite(ctx context.Context, doc SiteDocument) error {
	start := time.Now()

	if _, err := c.ts.Collection(c.cfg.Collection).Documents().Upsert(ctx, doc, &api.DocumentIndexParameters{}); err != nil {
		return fmt.Errorf("upsert site %s: %w", doc.Domain, err)
	}

	slog.DebugContext(ctx, "typesense site upserted",
		"domain", doc.Domain,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

func (c *client) SearchSites(ctx context.Context, query string, limit int) ([]SiteDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	start := time.Now()

	result, err := c.ts.Collection(c.cfg.Collection).Documents().Search(ctx, &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("keywords,name,description"),
		PerPage: pointer.Int(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search sites: %w", err)
	}

	var docs []SiteDocument
	if result.Hits != nil {
		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			raw, err := json.Marshal(*hit.Document)
			if err != nil {
				continue
			}
			var doc SiteDocument
			if err := json.Unmarshal(raw, &doc); err != nil {
				continue
			}
			docs = append(docs, doc)
		}
	}

	slog.DebugContext(ctx, "typesense search completed",
		"query", query,
		"results", len(docs),
		"duration_ms", time.Since(start).Milliseconds())

	return docs, nil
}
