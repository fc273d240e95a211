package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rankwell.app/onboard/common/llm"
	"rankwell.app/onboard/common/typesense"
	"rankwell.app/onboard/internal/crawl"
)

// SiteDirectory searches provisioned sites for enrichment. Satisfied by
// typesense.Client; nil when the directory is not configured.
type SiteDirectory interface {
	SearchSites(ctx context.Context, query string, limit int) ([]typesense.SiteDocument, error)
}

// CompetitorSuggestion is one proposed competitor. Source is "ai" for model
// output and "directory" for Typesense enrichment hits.
type CompetitorSuggestion struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Source string `json:"source"`
}

type competitorList struct {
	Competitors []competitorItem `json:"competitors" jsonschema_description:"Direct competitors of the site"`
}

type competitorItem struct {
	Domain string `json:"domain" jsonschema_description:"Competitor's apex domain, like example.com"`
	Name   string `json:"name" jsonschema_description:"Competitor's business name"`
	Reason string `json:"reason" jsonschema_description:"One sentence on why they compete"`
}

var competitorsSchema = llm.GenerateSchema[competitorList]()

const competitorsPromptVersion = "v1"

type competitorsHandler struct {
	llm       llm.Client
	directory SiteDirectory
	credits   CreditLedger
	evals     EvalSink
}

// NewCompetitorsHandler wires the findCompetitors action. directory and
// evals may be nil.
func NewCompetitorsHandler(client llm.Client, directory SiteDirectory, credits CreditLedger, evals EvalSink) Handler {
	return &competitorsHandler{
		llm:       client,
		directory: directory,
		credits:   credits,
		evals:     evals,
	}
}

func (h *competitorsHandler) Name() Name {
	return FindCompetitors
}

func (h *competitorsHandler) Invoke(ctx context.Context, actx *Context) (*Result, error) {
	keywords := anyStrings(actx.Responses["keywords"])
	prompt := buildCompetitorsPrompt(actx, keywords)
	if prompt == "" {
		return nil, fmt.Errorf("nothing to find competitors from yet")
	}

	decision, err := h.credits.Authorize(ctx, actx.AccountID, OpAICompetitors)
	if err != nil {
		return nil, fmt.Errorf("authorize competitor discovery: %w", err)
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%s: %w", decision.Reason, ErrDenied)
	}

	var response competitorList
	start := time.Now()

	for attempt := 0; attempt < 3; attempt++ {
		_, err = h.llm.Chat(ctx, llm.Request{
			SystemPrompt: competitorsSystemPrompt,
			UserPrompt:   prompt,
			SchemaName:   "competitor_list",
			Schema:       competitorsSchema,
			Temperature:  llm.Temp(0.3),
		}, &response)

		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			break
		}
		slog.WarnContext(ctx, "competitor discovery retry",
			"interview_id", actx.InterviewID,
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	latency := time.Since(start)

	h.logEval(ctx, actx.InterviewID, prompt, response, latency, err == nil)

	if err != nil {
		return nil, fmt.Errorf("find competitors: %w", err)
	}

	own := ownDomain(actx)
	suggestions := make([]CompetitorSuggestion, 0, len(response.Competitors))
	seen := map[string]bool{}
	if own != "" {
		seen[own] = true
	}

	for _, item := range response.Competitors {
		domain := normalizeDomain(item.Domain)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		suggestions = append(suggestions, CompetitorSuggestion{
			Domain: domain,
			Name:   item.Name,
			Reason: item.Reason,
			Source: "ai",
		})
	}

	suggestions = h.enrichFromDirectory(ctx, actx, keywords, suggestions, seen)

	if len(suggestions) == 0 {
		return nil, fmt.Errorf("find competitors: no usable suggestions")
	}

	if err := h.credits.Debit(ctx, actx.AccountID, OpAICompetitors); err != nil {
		slog.ErrorContext(ctx, "competitor discovery debit failed",
			"interview_id", actx.InterviewID,
			"account_id", actx.AccountID,
			"error", err)
	}

	slog.InfoContext(ctx, "competitors found",
		"interview_id", actx.InterviewID,
		"count", len(suggestions),
		"latency_ms", latency.Milliseconds())

	return &Result{StoreInExternalData: map[string]any{
		KeyCompetitorSuggestions:  suggestions,
		KeyCompetitorsGeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}}, nil
}

// enrichFromDirectory appends directory sites matching the chosen keywords.
// Directory failures are logged and swallowed; the AI suggestions stand on
// their own.
func (h *competitorsHandler) enrichFromDirectory(ctx context.Context, actx *Context, keywords []string, suggestions []CompetitorSuggestion, seen map[string]bool) []CompetitorSuggestion {
	if h.directory == nil || len(keywords) == 0 {
		return suggestions
	}

	hits, err := h.directory.SearchSites(ctx, strings.Join(keywords, " "), 5)
	if err != nil {
		slog.WarnContext(ctx, "site directory search failed",
			"interview_id", actx.InterviewID,
			"error", err)
		return suggestions
	}

	for _, hit := range hits {
		domain := normalizeDomain(hit.Domain)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		suggestions = append(suggestions, CompetitorSuggestion{
			Domain: domain,
			Name:   hit.Name,
			Reason: "Ranks for overlapping keywords in the site directory",
			Source: "directory",
		})
	}

	return suggestions
}

func (h *competitorsHandler) logEval(ctx context.Context, interviewID int64, prompt string, response competitorList, latency time.Duration, success bool) {
	if h.evals == nil {
		return
	}

	outputJSON, err := json.Marshal(response)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal competitor list for eval", "error", err)
		return
	}

	h.evals.Record(ctx, EvalRecord{
		InterviewID:   interviewID,
		Kind:          "competitors",
		Model:         h.llm.Model(),
		PromptVersion: competitorsPromptVersion,
		InputText:     prompt,
		OutputJSON:    outputJSON,
		LatencyMs:     int(latency.Milliseconds()),
		Success:       success,
	})
}

func buildCompetitorsPrompt(actx *Context, keywords []string) string {
	var sb strings.Builder

	if url, _ := actx.Responses["websiteUrl"].(string); url != "" {
		sb.WriteString("## Website\n")
		sb.WriteString(url)
		sb.WriteString("\n\n")
	}

	if desc, _ := actx.Responses["businessDescription"].(string); desc != "" {
		sb.WriteString("## Business description\n")
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}

	if len(keywords) > 0 {
		sb.WriteString("## Target keywords\n")
		for _, kw := range keywords {
			sb.WriteString(fmt.Sprintf("- %s\n", kw))
		}
		sb.WriteString("\n")
	}

	if crawled, _ := actx.ExternalData[KeyCrawledData].(map[string]any); crawled != nil {
		if title, _ := crawled["title"].(string); title != "" {
			sb.WriteString("## Site title\n")
			sb.WriteString(title)
			sb.WriteString("\n")
		}
	}

	return strings.TrimSpace(sb.String())
}

// ownDomain resolves the interviewee's own domain so it can never appear in
// its own competitor list.
func ownDomain(actx *Context) string {
	if rawURL, _ := actx.Responses["websiteUrl"].(string); rawURL != "" {
		if u, err := crawl.NormalizeStart(rawURL); err == nil {
			return normalizeDomain(u.Host)
		}
	}
	if crawled, _ := actx.ExternalData[KeyCrawledData].(map[string]any); crawled != nil {
		if domain, _ := crawled["domain"].(string); domain != "" {
			return normalizeDomain(domain)
		}
	}
	return ""
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	domain = strings.TrimSuffix(domain, "/")
	if !strings.Contains(domain, ".") {
		return ""
	}
	return domain
}

const competitorsSystemPrompt = `You identify direct competitors for a website that just joined an SEO platform.

Think: "If this business lost a customer, which site did that customer choose instead?"

## Rules

- Suggest 4 to 8 competitors
- domain is the apex domain only: "example.com", never a URL or subdomain
- Only real businesses that sell or do what this site sells or does
- Prefer competitors at a similar scale; a local bakery does not compete with a global grocery chain
- Reason is one sentence naming the overlap

## Do NOT suggest

- The site itself or its own brand
- Marketplaces, social networks or directories (amazon.com, etsy.com, facebook.com) unless the business IS a marketplace
- Aggregators or review sites
- Domains you are not confident exist`
