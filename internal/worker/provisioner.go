package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"rankwell.app/onboard/common"
	"rankwell.app/onboard/common/id"
	"rankwell.app/onboard/common/logger"
	"rankwell.app/onboard/common/typesense"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/queue"
	"rankwell.app/onboard/internal/store"
)

// StoreProvider mirrors the slice of service.StoreProvider provisioning needs.
// Defined here so the worker does not depend on the service layer; the cmd
// wiring adapts db.DB to it.
type StoreProvider interface {
	Interviews() store.InterviewStore
	Sites() store.SiteStore
}

// TxRunner mirrors service.TxRunner over the narrowed StoreProvider.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// maxSlugAttempts bounds how many suffixed slugs the provisioner tries when
// another account already owns the domain's slug.
const maxSlugAttempts = 5

// Provisioner turns a completed interview into a site. The site row and the
// interview's site link are written in one transaction; the directory index
// update happens after commit and is non-fatal.
type Provisioner struct {
	txRunner  TxRunner
	directory typesense.Client
}

// NewProvisioner creates a provisioner. directory may be nil when no search
// directory is configured.
func NewProvisioner(txRunner TxRunner, directory typesense.Client) *Provisioner {
	return &Provisioner{txRunner: txRunner, directory: directory}
}

// Process provisions the site for the message's interview. Replays are
// idempotent: an interview that already carries a site ID is skipped.
func (p *Provisioner) Process(ctx context.Context, msg queue.Message) error {
	if msg.InterviewID == nil {
		return errors.New("message has no interview id")
	}
	interviewID := *msg.InterviewID

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		site, err := p.provisionOnce(ctx, interviewID, attempt)
		if errors.Is(err, store.ErrConflict) {
			slog.InfoContext(ctx, "slug taken, retrying with suffix", "attempt", attempt)
			continue
		}
		if err != nil {
			return err
		}
		if site != nil {
			slog.InfoContext(ctx, "site provisioned",
				"site_id", site.ID,
				"domain", site.Domain,
				"slug", site.Slug)
			p.index(ctx, site)
		}
		return nil
	}

	return fmt.Errorf("exhausted slug candidates for interview %d", interviewID)
}

// provisionOnce runs one transactional provisioning attempt. It returns the
// created site, or nil when the message should be dropped (interview gone,
// not completed, or already provisioned).
func (p *Provisioner) provisionOnce(ctx context.Context, interviewID int64, attempt int) (*model.Site, error) {
	var site *model.Site

	err := p.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		itv, err := stores.Interviews().GetByIDForUpdate(ctx, interviewID)
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "interview not found, dropping task")
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading interview: %w", err)
		}

		if itv.Status != model.InterviewStatusCompleted {
			slog.WarnContext(ctx, "interview not completed, dropping task", "status", itv.Status)
			return nil
		}
		if itv.SiteID != nil {
			slog.InfoContext(ctx, "site already provisioned, skipping", "site_id", *itv.SiteID)
			return nil
		}

		built, err := siteFromInterview(itv, attempt)
		if err != nil {
			return err
		}

		if err := stores.Sites().CreateFromInterview(ctx, built); err != nil {
			return fmt.Errorf("creating site: %w", err)
		}

		itv.SiteID = &built.ID
		if err := stores.Interviews().Update(ctx, itv); err != nil {
			return fmt.Errorf("linking site to interview: %w", err)
		}

		site = built
		return nil
	})
	return site, err
}

// index pushes the site into the search directory. Failures are logged, not
// returned: the site row is committed and the index can be rebuilt.
func (p *Provisioner) index(ctx context.Context, site *model.Site) {
	if p.directory == nil {
		return
	}

	sc := logger.StartSpan(ctx, "provisioner.index_site")
	defer sc.End()
	ctx = sc.Context()

	desc, _ := site.Settings["businessDescription"].(string)
	doc := typesense.SiteDocument{
		ID:          strconv.FormatInt(site.ID, 10),
		AccountID:   strconv.FormatInt(site.AccountID, 10),
		Domain:      site.Domain,
		Name:        site.Name,
		Description: desc,
		Keywords:    site.Keywords,
	}
	if err := p.directory.UpsertSite(ctx, doc); err != nil {
		sc.RecordError(err)
		slog.WarnContext(ctx, "site directory upsert failed", "site_id", site.ID, "error", err)
	}
}

// siteFromInterview builds the site row from the interview's recorded
// responses. attempt > 1 appends a numeric suffix to the slug.
func siteFromInterview(itv *model.Interview, attempt int) (*model.Site, error) {
	rawURL, _ := itv.Responses["websiteUrl"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("interview %d has no website URL response", itv.ID)
	}
	domain := domainOf(rawURL)
	if domain == "" {
		return nil, fmt.Errorf("cannot derive domain from %q", rawURL)
	}

	slug, err := common.Slugify(domain, "site")
	if err != nil {
		return nil, fmt.Errorf("slugifying %q: %w", domain, err)
	}
	if attempt > 1 {
		slug = fmt.Sprintf("%s-%d", slug, attempt)
	}

	return &model.Site{
		ID:          id.New(),
		AccountID:   itv.AccountID,
		InterviewID: itv.ID,
		Domain:      domain,
		Name:        domain,
		Slug:        slug,
		Keywords:    responseStrings(itv.Responses["keywords"]),
		Competitors: responseStrings(itv.Responses["competitors"]),
		Settings:    siteSettings(itv),
	}, nil
}

// domainOf extracts the lowercased host from a submitted website URL,
// dropping any www prefix and port.
func domainOf(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	host, _, _ = strings.Cut(host, ":")
	return strings.TrimPrefix(host, "www.")
}

// responseStrings flattens a recorded response into a string list. Selections
// arrive as []any after a JSONB round trip; competitor entries may be objects
// carrying a domain field.
func responseStrings(v any) []string {
	switch vals := v.(type) {
	case nil:
		return nil
	case string:
		if vals == "" {
			return nil
		}
		return []string{vals}
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			switch entry := item.(type) {
			case string:
				if entry != "" {
					out = append(out, entry)
				}
			case map[string]any:
				if d, ok := entry["domain"].(string); ok && d != "" {
					out = append(out, d)
				}
			}
		}
		return out
	}
	return nil
}

// settingsAliases are the response fields carried over onto the site as
// initial settings. Identity fields (URL, keywords, competitors) have
// dedicated columns and stay out.
var settingsAliases = []string{
	"businessType",
	"ecommercePlatform",
	"serviceArea",
	"businessDescription",
	"seoGoals",
	"contentCadence",
	"technicalTrack",
	"sitemapUpload",
}

func siteSettings(itv *model.Interview) map[string]any {
	settings := make(map[string]any)
	for _, alias := range settingsAliases {
		if v, ok := itv.Responses[alias]; ok && v != nil {
			settings[alias] = v
		}
	}
	return settings
}
