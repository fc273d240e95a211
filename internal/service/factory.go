package service

import (
	"time"

	"rankwell.app/onboard/common/llm"
	"rankwell.app/onboard/core/config"
	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/invalidate"
	"rankwell.app/onboard/internal/queue"
	"rankwell.app/onboard/internal/store"
)

// Dependencies are the externals the service layer needs beyond Postgres.
// Nil members degrade gracefully: actions whose collaborators are missing
// never get registered, and the dispatcher skips unregistered names.
type Dependencies struct {
	LLM           llm.Client
	Crawler       action.SiteCrawler
	SiteGraph     action.SiteGraph
	Directory     action.SiteDirectory
	Producer      queue.Producer
	WorkOS        config.WorkOSConfig
	Credits       config.CreditsConfig
	CrawlCacheTTL time.Duration
}

type Services struct {
	stores     *store.Stores
	txRunner   TxRunner
	credits    CreditService
	dispatcher *action.Dispatcher
	finalizer  CompletionFinalizer
	workOSCfg  config.WorkOSConfig
}

func NewServices(stores *store.Stores, txRunner TxRunner, deps Dependencies) *Services {
	credits := NewCreditService(stores, txRunner, deps.Credits)
	evals := NewStoreEvalSink(stores)

	var handlers []action.Handler
	if deps.Crawler != nil {
		handlers = append(handlers, action.NewCrawlHandler(deps.Crawler, deps.SiteGraph, credits, deps.CrawlCacheTTL))
	}
	if deps.LLM != nil {
		handlers = append(handlers,
			action.NewKeywordsHandler(deps.LLM, credits, evals),
			action.NewCompetitorsHandler(deps.LLM, deps.Directory, credits, evals))
	}

	var finalizer CompletionFinalizer
	if deps.Producer != nil {
		finalizer = NewQueueFinalizer(deps.Producer)
	}

	return &Services{
		stores:     stores,
		txRunner:   txRunner,
		credits:    credits,
		dispatcher: action.NewDispatcher(action.NewRegistry(handlers...)),
		finalizer:  finalizer,
		workOSCfg:  deps.WorkOS,
	}
}

func (s *Services) Interviews() InterviewService {
	return NewInterviewService(
		s.stores,
		s.txRunner,
		s.dispatcher,
		invalidate.NewEngine(invalidate.DefaultRules()),
		s.finalizer,
	)
}

func (s *Services) Credits() CreditService {
	return s.credits
}

func (s *Services) Auth() AuthService {
	return NewAuthService(s.stores, s.txRunner, s.credits, s.workOSCfg)
}
