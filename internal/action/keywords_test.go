package action_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rankwell.app/onboard/common/llm"
	"rankwell.app/onboard/internal/action"
)

var _ = Describe("KeywordsHandler", func() {
	var (
		ctx     context.Context
		client  *mockLLM
		ledger  *mockLedger
		evals   *mockEvalSink
		handler action.Handler
		actx    *action.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockLLM{}
		ledger = &mockLedger{}
		evals = &mockEvalSink{}
		handler = action.NewKeywordsHandler(client, ledger, evals)
		actx = &action.Context{
			InterviewID: 1,
			AccountID:   2,
			Responses: map[string]any{
				"websiteUrl":          "https://acme.example",
				"businessDescription": "Hand-poured soy candles",
			},
			ExternalData: map[string]any{},
		}
	})

	suggest := func(keywords ...string) func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
		return func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
			out := result.(*action.KeywordSuggestions)
			for _, kw := range keywords {
				out.Keywords = append(out.Keywords, action.KeywordSuggestion{
					Keyword:    kw,
					Intent:     "transactional",
					Difficulty: "medium",
					Rationale:  "fits the catalog",
				})
			}
			return &llm.Response{PromptTokens: 100, CompletionTokens: 50}, nil
		}
	}

	It("stores suggestions, debits and records a successful eval", func() {
		client.chatFn = suggest("soy candles", "hand poured candles")

		res, err := handler.Invoke(ctx, actx)

		Expect(err).NotTo(HaveOccurred())
		Expect(ledger.debitCalls).To(Equal(1))

		stored, ok := res.StoreInExternalData[action.KeyKeywordSuggestions].([]action.KeywordSuggestion)
		Expect(ok).To(BeTrue())
		Expect(stored).To(HaveLen(2))
		Expect(res.StoreInExternalData).To(HaveKey(action.KeyKeywordsGeneratedAt))

		Expect(evals.records).To(HaveLen(1))
		Expect(evals.records[0].Kind).To(Equal("keywords"))
		Expect(evals.records[0].Success).To(BeTrue())
		Expect(evals.records[0].Model).To(Equal("gpt-test"))
	})

	It("feeds crawled content into the prompt", func() {
		actx.ExternalData[action.KeyCrawledData] = map[string]any{
			"title":    "Acme Candles",
			"headings": []any{"Hand Poured in Portland"},
		}
		var gotPrompt string
		client.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
			gotPrompt = req.UserPrompt
			return suggest("soy candles")(ctx, req, result)
		}

		_, err := handler.Invoke(ctx, actx)

		Expect(err).NotTo(HaveOccurred())
		Expect(gotPrompt).To(ContainSubstring("Acme Candles"))
		Expect(gotPrompt).To(ContainSubstring("Hand Poured in Portland"))
	})

	It("refuses when credits are denied", func() {
		ledger.authorizeFn = func(ctx context.Context, accountID int64, op string) (*action.Decision, error) {
			return &action.Decision{Allowed: false, Reason: "insufficient credits"}, nil
		}

		_, err := handler.Invoke(ctx, actx)

		Expect(err).To(MatchError(action.ErrDenied))
		Expect(client.chatCalls).To(Equal(0))
	})

	It("fails fast on a non-retryable error and records the failed eval", func() {
		client.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
			return nil, fmt.Errorf("chat: %w", context.Canceled)
		}

		_, err := handler.Invoke(ctx, actx)

		Expect(err).To(HaveOccurred())
		Expect(client.chatCalls).To(Equal(1), "non-retryable errors should not be retried")
		Expect(ledger.debitCalls).To(Equal(0))
		Expect(evals.records).To(HaveLen(1))
		Expect(evals.records[0].Success).To(BeFalse())
	})

	It("rejects an empty suggestion list without debiting", func() {
		client.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
			return &llm.Response{}, nil
		}

		_, err := handler.Invoke(ctx, actx)

		Expect(err).To(HaveOccurred())
		Expect(ledger.debitCalls).To(Equal(0))
	})

	It("requires some context to prompt from", func() {
		actx.Responses = map[string]any{}
		actx.ExternalData = map[string]any{}

		_, err := handler.Invoke(ctx, actx)

		Expect(err).To(HaveOccurred())
		Expect(ledger.authorizeCalls).To(Equal(0))
	})

	It("works without an eval sink", func() {
		handler = action.NewKeywordsHandler(client, ledger, nil)
		client.chatFn = suggest("soy candles")

		_, err := handler.Invoke(ctx, actx)

		Expect(err).NotTo(HaveOccurred())
	})
})
