// Package action defines the typed registry of interview side effects: the
// site crawl and AI suggestion jobs that questions trigger automatically on
// submission or expose for manual invocation. Handlers receive read-only
// snapshots and return results; the interview service owns all mutation.
package action

import (
	"context"
	"errors"
)

// Name identifies a registered action. Question rows reference actions by
// name in their allowed_actions and auto_actions columns.
type Name string

const (
	CrawlWebsite     Name = "crawlWebsite"
	FindCompetitors  Name = "findCompetitors"
	GenerateKeywords Name = "generateKeywords"
)

// Well-known externalData keys written by handlers. KeyCrawlCache is the
// per-URL crawl memo and the only key preserved across a website URL change.
const (
	KeyCrawledData            = "crawledData"
	KeyCrawlCache             = "crawlCache"
	KeyKeywordSuggestions     = "keywordSuggestions"
	KeyKeywordsGeneratedAt    = "keywordsGeneratedAt"
	KeyCompetitorSuggestions  = "competitorSuggestions"
	KeyCompetitorsGeneratedAt = "competitorsGeneratedAt"
)

// Billable operation names passed to the credit ledger.
const (
	OpCrawlSite     = "crawl.site"
	OpAIKeywords    = "ai.keywords"
	OpAICompetitors = "ai.competitors"
)

var (
	// ErrNotAllowed rejects a manual invocation of an action the current
	// question does not list.
	ErrNotAllowed = errors.New("action not allowed for this question")

	// ErrDenied is wrapped by handlers when credit authorization refuses the
	// operation. Always non-fatal to the interview itself.
	ErrDenied = errors.New("action denied")
)

// Context is the view a handler gets of the interview mid-operation.
// Responses and ExternalData are in-memory snapshots; handlers must not
// mutate them. The dispatcher applies returned results instead.
type Context struct {
	InterviewID  int64
	AccountID    int64
	SiteID       *int64
	Responses    map[string]any
	ExternalData map[string]any
}

// Result carries what a handler wants persisted.
type Result struct {
	// StoreInExternalData is shallow-merged into the interview's
	// externalData: each top-level key replaces any existing value wholesale.
	StoreInExternalData map[string]any
}

// MergeInto applies the shallow merge to external, allocating it when nil,
// and returns the map.
func (r *Result) MergeInto(external map[string]any) map[string]any {
	if r == nil || len(r.StoreInExternalData) == 0 {
		return external
	}
	if external == nil {
		external = make(map[string]any, len(r.StoreInExternalData))
	}
	for k, v := range r.StoreInExternalData {
		external[k] = v
	}
	return external
}

type Handler interface {
	Name() Name
	Invoke(ctx context.Context, actx *Context) (*Result, error)
}

// Registry resolves action names to handlers. Built once at startup from the
// concrete handlers; unknown names stay unknown rather than erroring, so a
// catalog referencing a handler this build lacks degrades instead of failing.
type Registry struct {
	handlers map[Name]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[Name]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Name()] = h
	}
	return r
}

func (r *Registry) Resolve(name Name) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Decision is a credit authorization verdict.
type Decision struct {
	Allowed   bool
	Reason    string
	Remaining int64
}

// CreditLedger gates paid actions. Handlers authorize before paid work and
// debit only after it succeeds, so a failed crawl or LLM call costs nothing.
type CreditLedger interface {
	Authorize(ctx context.Context, accountID int64, op string) (*Decision, error)
	Debit(ctx context.Context, accountID int64, op string) error
}

// EvalRecord captures one suggestion LLM call for quality tracking.
type EvalRecord struct {
	InterviewID   int64
	Kind          string
	Model         string
	PromptVersion string
	InputText     string
	OutputJSON    []byte
	LatencyMs     int
	Success       bool
}

// EvalSink persists eval records. Implementations log failures internally;
// eval logging is observability, never the critical path.
type EvalSink interface {
	Record(ctx context.Context, rec EvalRecord)
}
