package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rankwell.app/onboard/common/id"
	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/condition"
	"rankwell.app/onboard/internal/invalidate"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/service"
	"rankwell.app/onboard/internal/store"
)

// flowQuestions is a condensed onboarding flow: a URL question that crawls on
// submit, a branching business type, a conditional platform question, the
// keyword picker and a closing confirmation.
func flowQuestions() []model.Question {
	required := &model.ValidationRules{Required: true}
	return []model.Question{
		{
			ID:          "website-url",
			Order:       10,
			IsActive:    true,
			Type:        model.QuestionTypeInput,
			Prompt:      "What's your website URL?",
			SaveToField: "websiteUrl",
			InputConfig: model.InputConfig{Component: "url-input"},
			Validation:  &model.ValidationRules{Required: true, Pattern: `^https?://.+`},
			AutoActions: []action.Name{action.CrawlWebsite},
			AllowedActions: []action.Name{
				action.CrawlWebsite,
			},
			Version: 3,
		},
		{
			ID:          "business-type",
			Order:       20,
			IsActive:    true,
			Type:        model.QuestionTypeSelection,
			Prompt:      "What kind of business is it?",
			SaveToField: "businessType",
			InputConfig: model.InputConfig{Choices: []model.Choice{
				{Value: "ecommerce", Label: "Ecommerce"},
				{Value: "local-services", Label: "Local services"},
				{Value: "content", Label: "Content / media"},
			}},
			Validation: required,
			Version:    2,
		},
		{
			ID:          "ecommerce-platform",
			Order:       30,
			IsActive:    true,
			Type:        model.QuestionTypeSelection,
			Prompt:      "Which platform do you sell on?",
			SaveToField: "ecommercePlatform",
			DependsOn:   "businessType",
			ShowCondition: &condition.Predicate{
				Field: "businessType",
				Op:    condition.OpEq,
				Value: "ecommerce",
			},
			InputConfig: model.InputConfig{Choices: []model.Choice{
				{Value: "shopify", Label: "Shopify"},
				{Value: "woocommerce", Label: "WooCommerce"},
			}},
			Validation: required,
			Version:    2,
		},
		{
			ID:          "seed-keywords",
			Order:       40,
			IsActive:    true,
			Type:        model.QuestionTypeAISuggestion,
			Prompt:      "Pick the keywords you want to rank for.",
			SaveToField: "keywords",
			Validation:  required,
			AllowedActions: []action.Name{
				action.GenerateKeywords,
				action.FindCompetitors,
			},
			Version: 2,
		},
		{
			ID:         "final-confirmation",
			Order:      50,
			IsActive:   true,
			Type:       model.QuestionTypeConfirmation,
			Prompt:     "Ready to build your workspace?",
			Validation: required,
			Version:    2,
		},
	}
}

var _ = Describe("InterviewService", func() {
	var (
		ctx          context.Context
		provider     *mockStoreProvider
		txRunner     *mockTxRunner
		crawlAction  *mockHandler
		finalizer    *mockFinalizer
		svc          service.InterviewService
		appendedMsgs []model.Message
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		provider = newMockProvider()
		txRunner = &mockTxRunner{provider: provider}
		appendedMsgs = nil

		provider.questions.listActiveFn = func(_ context.Context) ([]model.Question, error) {
			return flowQuestions(), nil
		}
		provider.interviews.appendMessageFn = func(_ context.Context, msg *model.Message) error {
			appendedMsgs = append(appendedMsgs, *msg)
			return nil
		}

		crawlAction = &mockHandler{
			name: action.CrawlWebsite,
			invokeFn: func(_ context.Context, _ *action.Context) (*action.Result, error) {
				return &action.Result{StoreInExternalData: map[string]any{
					action.KeyCrawledData: map[string]any{"title": "Fresh crawl"},
				}}, nil
			},
		}

		finalizer = &mockFinalizer{}
		svc = service.NewInterviewService(
			provider,
			txRunner,
			action.NewDispatcher(action.NewRegistry(crawlAction)),
			invalidate.NewEngine(invalidate.DefaultRules()),
			finalizer,
		)
	})

	openInterview := func() *model.Interview {
		return &model.Interview{
			ID:           101,
			AccountID:    7,
			UserID:       9,
			Status:       model.InterviewStatusInProgress,
			Responses:    map[string]any{},
			ExternalData: map[string]any{},
		}
	}

	serveOpen := func(itv *model.Interview) {
		provider.interviews.findOpenByUserFn = func(_ context.Context, accountID, userID int64) (*model.Interview, error) {
			Expect(accountID).To(Equal(itv.AccountID))
			Expect(userID).To(Equal(itv.UserID))
			return itv, nil
		}
	}

	Describe("GetOrCreate", func() {
		It("returns the open interview without creating another", func() {
			itv := openInterview()
			serveOpen(itv)

			state, err := svc.GetOrCreate(ctx, 7, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Interview).To(Equal(itv))
			Expect(state.NextQuestion.ID).To(Equal("website-url"))
			Expect(provider.interviews.createCalls).To(BeZero())
		})

		It("lazily creates a session and prompts the first question", func() {
			var created *model.Interview
			provider.interviews.createFn = func(_ context.Context, itv *model.Interview) error {
				created = itv
				return nil
			}

			state, err := svc.GetOrCreate(ctx, 7, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).NotTo(BeNil())
			Expect(created.Status).To(Equal(model.InterviewStatusNotStarted))
			Expect(created.QuestionSetVersion).To(Equal(int32(3)))
			Expect(created.Responses).To(BeEmpty())

			Expect(appendedMsgs).To(HaveLen(1))
			Expect(appendedMsgs[0].Role).To(Equal(model.MessageRoleSystem))
			Expect(appendedMsgs[0].Content).To(Equal("What's your website URL?"))
			Expect(appendedMsgs[0].UIComponent).To(Equal("url-input"))

			Expect(state.NextQuestion.ID).To(Equal("website-url"))
			Expect(state.Progress.Reachable).To(Equal(int32(4)))
			Expect(state.Progress.Answered).To(BeZero())
			Expect(txRunner.txCalls).To(Equal(1))
		})

		It("re-fetches the winner when a concurrent create collides", func() {
			existing := openInterview()
			finds := 0
			provider.interviews.findOpenByUserFn = func(_ context.Context, _, _ int64) (*model.Interview, error) {
				finds++
				if finds == 1 {
					return nil, store.ErrNotFound
				}
				return existing, nil
			}
			provider.interviews.createFn = func(_ context.Context, _ *model.Interview) error {
				return store.ErrConflict
			}

			state, err := svc.GetOrCreate(ctx, 7, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Interview).To(Equal(existing))
			Expect(finds).To(Equal(2))
		})
	})

	Describe("Submit", func() {
		It("records the answer under the id and the alias and advances", func() {
			itv := openInterview()
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "https://shop.example",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Interview.Responses).To(HaveKeyWithValue("website-url", "https://shop.example"))
			Expect(res.Interview.Responses).To(HaveKeyWithValue("websiteUrl", "https://shop.example"))
			Expect(res.Interview.Status).To(Equal(model.InterviewStatusInProgress))
			Expect(res.Interview.CurrentStep).To(Equal(int32(1)))
			Expect(res.NextQuestion.ID).To(Equal("business-type"))

			Expect(crawlAction.calls).To(Equal(1))
			Expect(res.Interview.ExternalData).To(HaveKey(action.KeyCrawledData))
			Expect(res.ActionFailures).To(BeEmpty())

			Expect(appendedMsgs).To(HaveLen(2))
			Expect(appendedMsgs[0].Role).To(Equal(model.MessageRoleUser))
			Expect(appendedMsgs[0].Content).To(Equal("https://shop.example"))
			Expect(appendedMsgs[1].Role).To(Equal(model.MessageRoleSystem))
			Expect(appendedMsgs[1].Content).To(Equal("What kind of business is it?"))

			Expect(provider.interviews.updateCalls).To(Equal(1))
			Expect(txRunner.txCalls).To(Equal(1))
		})

		It("rejects an invalid answer without touching state", func() {
			itv := openInterview()
			serveOpen(itv)

			_, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "shop.example",
			})

			var verr *service.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.QuestionID).To(Equal("website-url"))
			Expect(verr.Result.IsValid).To(BeFalse())

			Expect(itv.Responses).To(BeEmpty())
			Expect(provider.interviews.updateCalls).To(BeZero())
			Expect(appendedMsgs).To(BeEmpty())
			Expect(txRunner.txCalls).To(BeZero())
			Expect(crawlAction.calls).To(BeZero())
		})

		It("suggests the corrected URL for a missing scheme", func() {
			serveOpen(openInterview())

			_, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "shop.example",
			})

			var verr *service.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Result.Suggestion).To(Equal("https://shop.example"))
			Expect(verr.Result.CanAutoCorrect).To(BeTrue())
		})

		It("skips validation when the client asks for it", func() {
			itv := openInterview()
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:      7,
				UserID:         9,
				QuestionID:     "website-url",
				Value:          "shop.example",
				SkipValidation: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Interview.Responses).To(HaveKeyWithValue("websiteUrl", "shop.example"))
			Expect(provider.interviews.updateCalls).To(Equal(1))
		})

		It("returns ErrQuestionNotFound for an unknown question", func() {
			serveOpen(openInterview())

			_, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "no-such-question",
				Value:      "x",
			})
			Expect(errors.Is(err, service.ErrQuestionNotFound)).To(BeTrue())
		})

		It("returns ErrNoOpenInterview when nothing is open", func() {
			_, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "https://shop.example",
			})
			Expect(errors.Is(err, service.ErrNoOpenInterview)).To(BeTrue())
		})

		It("reveals the platform question for ecommerce businesses", func() {
			itv := openInterview()
			itv.Responses = map[string]any{
				"website-url": "https://shop.example",
				"websiteUrl":  "https://shop.example",
			}
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "business-type",
				Value:      "ecommerce",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.NextQuestion.ID).To(Equal("ecommerce-platform"))
			Expect(res.Progress.Reachable).To(Equal(int32(5)))
			Expect(res.Progress.Answered).To(Equal(int32(2)))
		})

		It("keeps the platform branch hidden for other businesses", func() {
			itv := openInterview()
			itv.Responses = map[string]any{
				"website-url": "https://blog.example",
				"websiteUrl":  "https://blog.example",
			}
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "business-type",
				Value:      "content",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.NextQuestion.ID).To(Equal("seed-keywords"))
			Expect(res.Progress.Reachable).To(Equal(int32(4)))
		})

		It("reports auto-action failures without failing the submission", func() {
			crawlAction.invokeFn = func(_ context.Context, _ *action.Context) (*action.Result, error) {
				return nil, errors.New("crawl timeout")
			}
			itv := openInterview()
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "https://shop.example",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ActionFailures).To(HaveLen(1))
			Expect(res.ActionFailures[0].Action).To(Equal(action.CrawlWebsite))
			Expect(res.ActionFailures[0].Denied).To(BeFalse())
			Expect(res.Interview.ExternalData).NotTo(HaveKey(action.KeyCrawledData))
			Expect(provider.interviews.updateCalls).To(Equal(1))
		})

		It("marks credit denials distinctly among failures", func() {
			crawlAction.invokeFn = func(_ context.Context, _ *action.Context) (*action.Result, error) {
				return nil, fmt.Errorf("insufficient credits: %w", action.ErrDenied)
			}
			serveOpen(openInterview())

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "https://shop.example",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ActionFailures).To(HaveLen(1))
			Expect(res.ActionFailures[0].Denied).To(BeTrue())
		})

		It("wipes derived state when the website URL changes", func() {
			itv := openInterview()
			itv.CurrentStep = 3
			itv.Responses = map[string]any{
				"website-url":        "https://old.example",
				"websiteUrl":         "https://old.example",
				"business-type":      "ecommerce",
				"businessType":       "ecommerce",
				"ecommerce-platform": "shopify",
				"ecommercePlatform":  "shopify",
			}
			itv.ExternalData = map[string]any{
				action.KeyCrawledData:            map[string]any{"title": "Old site"},
				action.KeyCrawlCache:             map[string]any{"https://old.example": map[string]any{}},
				action.KeyKeywordSuggestions:     []any{"old keyword"},
				action.KeyCompetitorSuggestions:  []any{"rival.example"},
				action.KeyCompetitorsGeneratedAt: "2026-01-01T00:00:00Z",
			}
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "https://new.example",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Interview.Responses).To(HaveLen(2))
			Expect(res.Interview.Responses).To(HaveKeyWithValue("websiteUrl", "https://new.example"))
			Expect(res.Interview.Responses).To(HaveKeyWithValue("website-url", "https://new.example"))

			// The per-URL crawl memo survives; everything else derived from
			// the old site is gone, then the fresh crawl lands on top.
			Expect(res.Interview.ExternalData).To(HaveKey(action.KeyCrawlCache))
			Expect(res.Interview.ExternalData).To(HaveKey(action.KeyCrawledData))
			Expect(res.Interview.ExternalData).NotTo(HaveKey(action.KeyKeywordSuggestions))
			Expect(res.Interview.ExternalData).NotTo(HaveKey(action.KeyCompetitorSuggestions))

			Expect(res.NextQuestion.ID).To(Equal("business-type"))
			Expect(res.Interview.CurrentStep).To(Equal(int32(1)))
		})

		It("does not cascade on an idempotent URL resubmission", func() {
			itv := openInterview()
			itv.Responses = map[string]any{
				"website-url":   "https://shop.example",
				"websiteUrl":    "https://shop.example",
				"business-type": "content",
				"businessType":  "content",
			}
			itv.ExternalData = map[string]any{
				action.KeyKeywordSuggestions: []any{"seo tools"},
			}
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "https://shop.example/",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Interview.Responses).To(HaveKeyWithValue("businessType", "content"))
			Expect(res.Interview.ExternalData).To(HaveKey(action.KeyKeywordSuggestions))
		})

		It("clears only competitor data when the keyword set changes", func() {
			itv := openInterview()
			itv.Responses = map[string]any{
				"website-url":   "https://blog.example",
				"websiteUrl":    "https://blog.example",
				"business-type": "content",
				"businessType":  "content",
				"seed-keywords": []any{"seo tools"},
				"keywords":      []any{"seo tools"},
			}
			itv.ExternalData = map[string]any{
				action.KeyCrawledData:            map[string]any{"title": "Blog"},
				action.KeyCompetitorSuggestions:  []any{"rival.example"},
				action.KeyCompetitorsGeneratedAt: "2026-01-01T00:00:00Z",
			}
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "seed-keywords",
				Value:      []any{"seo tools", "rank tracking"},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Interview.ExternalData).To(HaveKey(action.KeyCrawledData))
			Expect(res.Interview.ExternalData).NotTo(HaveKey(action.KeyCompetitorSuggestions))
			Expect(res.Interview.ExternalData).NotTo(HaveKey(action.KeyCompetitorsGeneratedAt))

			Expect(res.Interview.Responses).To(HaveKeyWithValue("websiteUrl", "https://blog.example"))
			Expect(res.NextQuestion.ID).To(Equal("final-confirmation"))
		})

		It("completes the interview and notifies the finalizer once", func() {
			itv := openInterview()
			itv.Responses = map[string]any{
				"website-url":   "https://blog.example",
				"websiteUrl":    "https://blog.example",
				"business-type": "content",
				"businessType":  "content",
				"seed-keywords": []any{"seo tools"},
				"keywords":      []any{"seo tools"},
			}
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "final-confirmation",
				Value:      true,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.NextQuestion).To(BeNil())
			Expect(res.Interview.Status).To(Equal(model.InterviewStatusCompleted))
			Expect(res.Interview.CompletedAt).NotTo(BeNil())
			Expect(res.Progress.Percent).To(Equal(float64(100)))

			Expect(finalizer.calls).To(Equal(1))
			Expect(finalizer.last.ID).To(Equal(itv.ID))

			Expect(appendedMsgs).To(HaveLen(2))
			Expect(appendedMsgs[1].Role).To(Equal(model.MessageRoleSystem))
		})

		It("stores string confirmations as the boolean they mean", func() {
			itv := openInterview()
			itv.Responses = map[string]any{
				"website-url":   "https://blog.example",
				"websiteUrl":    "https://blog.example",
				"business-type": "content",
				"businessType":  "content",
				"seed-keywords": []any{"seo tools"},
				"keywords":      []any{"seo tools"},
			}
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "final-confirmation",
				Value:      " Yes ",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Interview.Responses).To(HaveKeyWithValue("final-confirmation", true))
			Expect(res.Interview.Status).To(Equal(model.InterviewStatusCompleted))
		})

		It("returns persistence errors and skips the finalizer", func() {
			itv := openInterview()
			itv.Responses = map[string]any{
				"website-url":   "https://blog.example",
				"websiteUrl":    "https://blog.example",
				"business-type": "content",
				"businessType":  "content",
				"seed-keywords": []any{"seo tools"},
				"keywords":      []any{"seo tools"},
			}
			serveOpen(itv)
			provider.interviews.updateFn = func(_ context.Context, _ *model.Interview) error {
				return errors.New("connection reset")
			}

			_, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "final-confirmation",
				Value:      true,
			})
			Expect(err).To(HaveOccurred())
			Expect(finalizer.calls).To(BeZero())
		})
	})

	Describe("NextQuestion and Progress", func() {
		It("agrees with the submission-time derivation", func() {
			itv := openInterview()
			serveOpen(itv)

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID:  7,
				UserID:     9,
				QuestionID: "website-url",
				Value:      "https://shop.example",
			})
			Expect(err).NotTo(HaveOccurred())

			next, err := svc.NextQuestion(ctx, 7, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(next.ID).To(Equal(res.NextQuestion.ID))

			prog, err := svc.Progress(ctx, 7, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog).To(Equal(res.Progress))
		})
	})

	Describe("InvokeAction", func() {
		It("runs an allowed action and persists the merged data", func() {
			crawlAction.invokeFn = func(_ context.Context, _ *action.Context) (*action.Result, error) {
				return &action.Result{StoreInExternalData: map[string]any{
					action.KeyCrawledData: map[string]any{"title": "Shop"},
					action.KeyCrawlCache:  map[string]any{"https://shop.example": map[string]any{}},
				}}, nil
			}
			itv := openInterview()
			serveOpen(itv)

			outcome, err := svc.InvokeAction(ctx, 7, 9, action.CrawlWebsite)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Action).To(Equal(action.CrawlWebsite))
			Expect(outcome.StoredKeys).To(Equal([]string{action.KeyCrawlCache, action.KeyCrawledData}))

			Expect(itv.ExternalData).To(HaveKey(action.KeyCrawledData))
			Expect(provider.interviews.updateCalls).To(Equal(1))
		})

		It("rejects actions the current question does not allow", func() {
			serveOpen(openInterview())

			_, err := svc.InvokeAction(ctx, 7, 9, action.GenerateKeywords)
			Expect(errors.Is(err, action.ErrNotAllowed)).To(BeTrue())
			Expect(provider.interviews.updateCalls).To(BeZero())
		})

		It("rejects invocations when nothing is awaiting an answer", func() {
			itv := openInterview()
			itv.Responses = map[string]any{
				"websiteUrl":         "https://blog.example",
				"website-url":        "https://blog.example",
				"businessType":       "content",
				"business-type":      "content",
				"keywords":           []any{"seo"},
				"seed-keywords":      []any{"seo"},
				"final-confirmation": true,
			}
			serveOpen(itv)

			_, err := svc.InvokeAction(ctx, 7, 9, action.CrawlWebsite)
			Expect(errors.Is(err, action.ErrNotAllowed)).To(BeTrue())
		})

		It("propagates handler failures as ActionError", func() {
			crawlAction.invokeFn = func(_ context.Context, _ *action.Context) (*action.Result, error) {
				return nil, errors.New("crawl timeout")
			}
			serveOpen(openInterview())

			_, err := svc.InvokeAction(ctx, 7, 9, action.CrawlWebsite)

			var aerr *service.ActionError
			Expect(errors.As(err, &aerr)).To(BeTrue())
			Expect(aerr.Action).To(Equal(action.CrawlWebsite))
			Expect(err).To(MatchError(ContainSubstring("crawl timeout")))
			Expect(provider.interviews.updateCalls).To(BeZero())
		})

		It("passes credit denials through unwrapped", func() {
			crawlAction.invokeFn = func(_ context.Context, _ *action.Context) (*action.Result, error) {
				return nil, fmt.Errorf("insufficient credits: %w", action.ErrDenied)
			}
			serveOpen(openInterview())

			_, err := svc.InvokeAction(ctx, 7, 9, action.CrawlWebsite)
			Expect(errors.Is(err, action.ErrDenied)).To(BeTrue())
		})
	})

	Describe("Revert", func() {
		fullInterview := func() *model.Interview {
			itv := openInterview()
			itv.CurrentStep = 4
			itv.Responses = map[string]any{
				"website-url":        "https://shop.example",
				"websiteUrl":         "https://shop.example",
				"business-type":      "ecommerce",
				"businessType":       "ecommerce",
				"ecommerce-platform": "shopify",
				"ecommercePlatform":  "shopify",
				"seed-keywords":      []any{"seo tools"},
				"keywords":           []any{"seo tools"},
			}
			itv.ExternalData = map[string]any{
				action.KeyCrawledData:            map[string]any{"title": "Shop"},
				action.KeyCompetitorSuggestions:  []any{"rival.example"},
				action.KeyCompetitorsGeneratedAt: "2026-01-01T00:00:00Z",
			}
			return itv
		}

		It("rewinds to the target question and clears downstream answers", func() {
			itv := fullInterview()
			serveOpen(itv)

			state, err := svc.Revert(ctx, service.RevertRequest{
				AccountID:        7,
				UserID:           9,
				TargetQuestionID: "business-type",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(state.Interview.Responses).To(HaveLen(2))
			Expect(state.Interview.Responses).To(HaveKeyWithValue("websiteUrl", "https://shop.example"))
			Expect(state.Interview.CurrentStep).To(Equal(int32(1)))
			Expect(state.Interview.Status).To(Equal(model.InterviewStatusInProgress))
			Expect(state.NextQuestion.ID).To(Equal("business-type"))

			// Dropping the keyword answer voids the competitor suggestions
			// derived from it; the crawl of the unchanged URL survives.
			Expect(state.Interview.ExternalData).To(HaveKey(action.KeyCrawledData))
			Expect(state.Interview.ExternalData).NotTo(HaveKey(action.KeyCompetitorSuggestions))
			Expect(state.Interview.ExternalData).NotTo(HaveKey(action.KeyCompetitorsGeneratedAt))

			Expect(appendedMsgs).To(HaveLen(1))
			Expect(appendedMsgs[0].Role).To(Equal(model.MessageRoleSystem))
			Expect(appendedMsgs[0].Content).To(Equal("What kind of business is it?"))
		})

		It("prefers the question id when both targets are given", func() {
			itv := fullInterview()
			serveOpen(itv)

			idx := int32(0)
			state, err := svc.Revert(ctx, service.RevertRequest{
				AccountID:        7,
				UserID:           9,
				TargetIndex:      &idx,
				TargetQuestionID: "seed-keywords",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.NextQuestion.ID).To(Equal("seed-keywords"))
			Expect(state.Interview.Responses).To(HaveKeyWithValue("ecommercePlatform", "shopify"))
		})

		It("reproduces the original state when answers are resubmitted", func() {
			itv := fullInterview()
			serveOpen(itv)

			_, err := svc.Revert(ctx, service.RevertRequest{
				AccountID:        7,
				UserID:           9,
				TargetQuestionID: "business-type",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Submit(ctx, service.SubmitRequest{
				AccountID: 7, UserID: 9, QuestionID: "business-type", Value: "ecommerce",
			})
			Expect(err).NotTo(HaveOccurred())

			res, err := svc.Submit(ctx, service.SubmitRequest{
				AccountID: 7, UserID: 9, QuestionID: "ecommerce-platform", Value: "shopify",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Interview.Responses).To(HaveKeyWithValue("businessType", "ecommerce"))
			Expect(res.Interview.Responses).To(HaveKeyWithValue("ecommercePlatform", "shopify"))
			Expect(res.NextQuestion.ID).To(Equal("seed-keywords"))
		})

		It("rejects an unknown target question", func() {
			serveOpen(fullInterview())

			_, err := svc.Revert(ctx, service.RevertRequest{
				AccountID:        7,
				UserID:           9,
				TargetQuestionID: "no-such-question",
			})
			Expect(errors.Is(err, service.ErrQuestionNotFound)).To(BeTrue())
		})

		It("rejects an out-of-range target index", func() {
			serveOpen(fullInterview())

			idx := int32(99)
			_, err := svc.Revert(ctx, service.RevertRequest{AccountID: 7, UserID: 9, TargetIndex: &idx})
			Expect(errors.Is(err, service.ErrInvalidTarget)).To(BeTrue())
		})

		It("requires a target", func() {
			serveOpen(fullInterview())

			_, err := svc.Revert(ctx, service.RevertRequest{AccountID: 7, UserID: 9})
			Expect(errors.Is(err, service.ErrInvalidTarget)).To(BeTrue())
		})
	})

	Describe("Reset", func() {
		It("wipes state, deletes the conversation and reprompts", func() {
			itv := openInterview()
			itv.CurrentStep = 3
			itv.Responses = map[string]any{"websiteUrl": "https://shop.example"}
			itv.ExternalData = map[string]any{action.KeyCrawledData: map[string]any{}}
			serveOpen(itv)

			state, err := svc.Reset(ctx, 7, 9)
			Expect(err).NotTo(HaveOccurred())

			Expect(state.Interview.Responses).To(BeEmpty())
			Expect(state.Interview.ExternalData).To(BeEmpty())
			Expect(state.Interview.CurrentStep).To(BeZero())
			Expect(state.Interview.Status).To(Equal(model.InterviewStatusNotStarted))
			Expect(state.NextQuestion.ID).To(Equal("website-url"))

			Expect(provider.interviews.deleteMessagesCalls).To(Equal(1))
			Expect(appendedMsgs).To(HaveLen(1))
			Expect(appendedMsgs[0].Content).To(Equal("What's your website URL?"))
			Expect(txRunner.txCalls).To(Equal(1))
		})

		It("starts a fresh interview when none is open", func() {
			state, err := svc.Reset(ctx, 7, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(provider.interviews.createCalls).To(Equal(1))
			Expect(state.Interview.Status).To(Equal(model.InterviewStatusNotStarted))
		})
	})

	Describe("Abandon", func() {
		It("marks the open interview abandoned", func() {
			itv := openInterview()
			serveOpen(itv)

			Expect(svc.Abandon(ctx, 7, 9)).To(Succeed())
			Expect(itv.Status).To(Equal(model.InterviewStatusAbandoned))
			Expect(provider.interviews.updateCalls).To(Equal(1))
		})

		It("returns ErrNoOpenInterview when nothing is open", func() {
			err := svc.Abandon(ctx, 7, 9)
			Expect(errors.Is(err, service.ErrNoOpenInterview)).To(BeTrue())
		})
	})

	Describe("Messages", func() {
		It("replays the conversation in order", func() {
			itv := openInterview()
			serveOpen(itv)
			provider.interviews.listMessagesFn = func(_ context.Context, interviewID int64) ([]model.Message, error) {
				Expect(interviewID).To(Equal(itv.ID))
				return []model.Message{
					{ID: 1, Role: model.MessageRoleSystem, Content: "What's your website URL?", CreatedAt: time.Now()},
					{ID: 2, Role: model.MessageRoleUser, Content: "https://shop.example", CreatedAt: time.Now()},
				}, nil
			}

			msgs, err := svc.Messages(ctx, 7, 9)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal(model.MessageRoleSystem))
		})
	})
})
