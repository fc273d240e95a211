package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rankwell.app/onboard/common/llm"
)

type KeywordSuggestions struct {
	Keywords []KeywordSuggestion `json:"keywords" jsonschema_description:"Suggested SEO keywords for the site"`
}

type KeywordSuggestion struct {
	Keyword    string `json:"keyword" jsonschema_description:"The search phrase, lowercase"`
	Intent     string `json:"intent" jsonschema:"enum=informational,enum=navigational,enum=transactional,enum=commercial" jsonschema_description:"Dominant search intent"`
	Difficulty string `json:"difficulty" jsonschema:"enum=low,enum=medium,enum=high" jsonschema_description:"How contested the phrase is"`
	Rationale  string `json:"rationale" jsonschema_description:"Why this keyword fits the site"`
}

var keywordsSchema = llm.GenerateSchema[KeywordSuggestions]()

const keywordsPromptVersion = "v1"

type keywordsHandler struct {
	llm     llm.Client
	credits CreditLedger
	evals   EvalSink
}

// NewKeywordsHandler wires the generateKeywords action. evals may be nil.
func NewKeywordsHandler(client llm.Client, credits CreditLedger, evals EvalSink) Handler {
	return &keywordsHandler{
		llm:     client,
		credits: credits,
		evals:   evals,
	}
}

func (h *keywordsHandler) Name() Name {
	return GenerateKeywords
}

func (h *keywordsHandler) Invoke(ctx context.Context, actx *Context) (*Result, error) {
	prompt := buildKeywordsPrompt(actx)
	if prompt == "" {
		return nil, fmt.Errorf("nothing to generate keywords from yet")
	}

	decision, err := h.credits.Authorize(ctx, actx.AccountID, OpAIKeywords)
	if err != nil {
		return nil, fmt.Errorf("authorize keyword generation: %w", err)
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%s: %w", decision.Reason, ErrDenied)
	}

	var response KeywordSuggestions
	start := time.Now()

	// Retry with exponential backoff (1s, 2s, 4s) to ride out transient rate
	// limits. Three attempts, then surface the failure to the user.
	for attempt := 0; attempt < 3; attempt++ {
		_, err = h.llm.Chat(ctx, llm.Request{
			SystemPrompt: keywordsSystemPrompt,
			UserPrompt:   prompt,
			SchemaName:   "keyword_suggestions",
			Schema:       keywordsSchema,
			Temperature:  llm.Temp(0.3),
		}, &response)

		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			break
		}
		slog.WarnContext(ctx, "keyword generation retry",
			"interview_id", actx.InterviewID,
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	latency := time.Since(start)

	h.logEval(ctx, actx.InterviewID, prompt, response, latency, err == nil)

	if err != nil {
		return nil, fmt.Errorf("generate keywords: %w", err)
	}
	if len(response.Keywords) == 0 {
		return nil, fmt.Errorf("generate keywords: model returned no suggestions")
	}

	if err := h.credits.Debit(ctx, actx.AccountID, OpAIKeywords); err != nil {
		slog.ErrorContext(ctx, "keyword generation debit failed",
			"interview_id", actx.InterviewID,
			"account_id", actx.AccountID,
			"error", err)
	}

	slog.InfoContext(ctx, "keywords generated",
		"interview_id", actx.InterviewID,
		"count", len(response.Keywords),
		"latency_ms", latency.Milliseconds())

	return &Result{StoreInExternalData: map[string]any{
		KeyKeywordSuggestions:  response.Keywords,
		KeyKeywordsGeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}}, nil
}

func (h *keywordsHandler) logEval(ctx context.Context, interviewID int64, prompt string, response KeywordSuggestions, latency time.Duration, success bool) {
	if h.evals == nil {
		return
	}

	outputJSON, err := json.Marshal(response)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal keyword suggestions for eval", "error", err)
		return
	}

	h.evals.Record(ctx, EvalRecord{
		InterviewID:   interviewID,
		Kind:          "keywords",
		Model:         h.llm.Model(),
		PromptVersion: keywordsPromptVersion,
		InputText:     prompt,
		OutputJSON:    outputJSON,
		LatencyMs:     int(latency.Milliseconds()),
		Success:       success,
	})
}

func buildKeywordsPrompt(actx *Context) string {
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

	if businessType, _ := actx.Responses["businessType"].(string); businessType != "" {
		sb.WriteString("## Business type\n")
		sb.WriteString(businessType)
		sb.WriteString("\n\n")
	}

	if crawled, _ := actx.ExternalData[KeyCrawledData].(map[string]any); crawled != nil {
		sb.WriteString("## Crawled site content\n")
		if title, _ := crawled["title"].(string); title != "" {
			sb.WriteString(fmt.Sprintf("Title: %s\n", title))
		}
		if desc, _ := crawled["description"].(string); desc != "" {
			sb.WriteString(fmt.Sprintf("Meta description: %s\n", desc))
		}
		if headings := anyStrings(crawled["headings"]); len(headings) > 0 {
			sb.WriteString("Headings:\n")
			for _, heading := range headings {
				sb.WriteString(fmt.Sprintf("- %s\n", heading))
			}
		}
	}

	return strings.TrimSpace(sb.String())
}

// anyStrings coerces a JSONB round-tripped list ([]any or []string) into
// strings, dropping anything else.
func anyStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

const keywordsSystemPrompt = `You suggest SEO keywords for a website that just joined an SEO platform.

Think: "What would this business's ideal customer type into a search engine?"

## Intent

- informational: researching a topic ("how to store soy candles")
- navigational: looking for a specific brand or site
- transactional: ready to buy ("buy soy candles online")
- commercial: comparing options ("best soy candles 2025")

## Rules

- Suggest 8 to 12 keywords
- Lowercase phrases, no quotes or punctuation
- Mix head terms (1-2 words) with long-tail phrases (3-5 words)
- Ground every keyword in the provided site content and description; never invent niches the business does not serve
- difficulty reflects how contested the phrase is: generic head terms are high, specific long-tail phrases are low
- Rationale is one sentence tying the keyword to this business

## Do NOT suggest

- The business's own brand name
- Single generic words like "shop" or "online"
- Keywords for products or services the content never mentions`
