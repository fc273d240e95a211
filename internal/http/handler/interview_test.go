package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rankwell.app/onboard/internal/action"
	"rankwell.app/onboard/internal/graph"
	"rankwell.app/onboard/internal/http/handler"
	"rankwell.app/onboard/internal/http/middleware"
	"rankwell.app/onboard/internal/http/router"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/service"
	"rankwell.app/onboard/internal/validate"
)

func sampleState() *service.InterviewState {
	return &service.InterviewState{
		Interview: &model.Interview{
			ID:        101,
			AccountID: 7,
			UserID:    9,
			Status:    model.InterviewStatusInProgress,
			Responses: map[string]any{"websiteUrl": "https://shop.example"},
		},
		NextQuestion: &model.Question{
			ID:     "business-type",
			Type:   model.QuestionTypeSelection,
			Prompt: "What kind of business is it?",
		},
		Progress: graph.Progress{Answered: 1, Reachable: 4, Percent: 25},
	}
}

var _ = Describe("InterviewHandler", func() {
	var (
		engine     *gin.Engine
		interviews *mockInterviewService
		auth       *mockAuthService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		interviews = &mockInterviewService{}
		auth = &mockAuthService{
			validateSessionFn: func(_ context.Context, sessionID int64) (*model.User, *model.Account, error) {
				return &model.User{ID: 9, AccountID: 7, Name: "Dana", Email: "dana@example.com"},
					&model.Account{ID: 7, Name: "Acme", Slug: "acme"}, nil
			},
		}

		engine = gin.New()
		authed := engine.Group("/api/v1")
		authed.Use(middleware.RequireAuth(auth))
		router.InterviewRouter(authed.Group("/interview"), handler.NewInterviewHandler(interviews))
	})

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var reader *bytes.Buffer
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewBuffer(raw)
		} else {
			reader = bytes.NewBuffer(nil)
		}

		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer 42")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Describe("authentication", func() {
		It("rejects requests without a session", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/interview", nil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("clears the cookie on an expired session", func() {
			auth.validateSessionFn = func(_ context.Context, _ int64) (*model.User, *model.Account, error) {
				return nil, nil, service.ErrSessionExpired
			}

			w := do(http.MethodGet, "/api/v1/interview", nil)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(strings.Join(w.Header().Values("Set-Cookie"), ";")).To(ContainSubstring(middleware.SessionCookieName + "="))
		})

		It("accepts the session cookie when no bearer token is sent", func() {
			interviews.getFn = func(_ context.Context, _, _ int64) (*service.InterviewState, error) {
				return sampleState(), nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/interview", nil)
			req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "42"})
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("GET /interview", func() {
		It("returns the state with the tenant scope from the session", func() {
			var gotAccount, gotUser int64
			interviews.getFn = func(_ context.Context, accountID, userID int64) (*service.InterviewState, error) {
				gotAccount, gotUser = accountID, userID
				return sampleState(), nil
			}

			w := do(http.MethodGet, "/api/v1/interview", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotAccount).To(Equal(int64(7)))
			Expect(gotUser).To(Equal(int64(9)))

			resp := decode(w)
			interview := resp["interview"].(map[string]any)
			Expect(interview["id"]).To(Equal("101"))
			next := resp["nextQuestion"].(map[string]any)
			Expect(next["id"]).To(Equal("business-type"))
			progress := resp["progress"].(map[string]any)
			Expect(progress["percent"]).To(Equal(float64(25)))
		})

		It("returns 404 NOT_FOUND when nothing is open", func() {
			w := do(http.MethodGet, "/api/v1/interview", nil)

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decode(w)["code"]).To(Equal("NOT_FOUND"))
		})
	})

	Describe("POST /interview/submit", func() {
		It("returns the submit result with mapped action failures", func() {
			interviews.submitFn = func(_ context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
				Expect(req.QuestionID).To(Equal("website-url"))
				Expect(req.Value).To(Equal("https://shop.example"))
				state := sampleState()
				return &service.SubmitResult{
					Interview:    state.Interview,
					NextQuestion: state.NextQuestion,
					Progress:     state.Progress,
					ActionFailures: []action.Failure{
						{Action: action.CrawlWebsite, Err: fmt.Errorf("insufficient credits: %w", action.ErrDenied), Denied: true},
					},
				}, nil
			}

			w := do(http.MethodPost, "/api/v1/interview/submit", map[string]any{
				"questionId": "website-url",
				"value":      "https://shop.example",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			failures := decode(w)["actionFailures"].([]any)
			Expect(failures).To(HaveLen(1))
			failure := failures[0].(map[string]any)
			Expect(failure["action"]).To(Equal("crawlWebsite"))
			Expect(failure["code"]).To(Equal("ACTION_DENIED"))
		})

		It("returns 422 with the validation payload", func() {
			interviews.submitFn = func(_ context.Context, _ service.SubmitRequest) (*service.SubmitResult, error) {
				return nil, &service.ValidationError{
					QuestionID: "website-url",
					Result: validate.Result{
						Error:          "answer does not match the expected format",
						Suggestion:     "https://shop.example",
						CanAutoCorrect: true,
					},
				}
			}

			w := do(http.MethodPost, "/api/v1/interview/submit", map[string]any{
				"questionId": "website-url",
				"value":      "shop.example",
			})

			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
			resp := decode(w)
			Expect(resp["code"]).To(Equal("VALIDATION_ERROR"))
			Expect(resp["questionId"]).To(Equal("website-url"))
			validation := resp["validation"].(map[string]any)
			Expect(validation["suggestion"]).To(Equal("https://shop.example"))
			Expect(validation["canAutoCorrect"]).To(BeTrue())
		})

		It("returns 400 on a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/interview/submit", bytes.NewBufferString(`{`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer 42")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown question", func() {
			interviews.submitFn = func(_ context.Context, _ service.SubmitRequest) (*service.SubmitResult, error) {
				return nil, fmt.Errorf("no-such-question: %w", service.ErrQuestionNotFound)
			}

			w := do(http.MethodPost, "/api/v1/interview/submit", map[string]any{
				"questionId": "no-such-question",
				"value":      "x",
			})

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decode(w)["code"]).To(Equal("NOT_FOUND"))
		})

		It("masks persistence failures as 500 PERSISTENCE_ERROR", func() {
			interviews.submitFn = func(_ context.Context, _ service.SubmitRequest) (*service.SubmitResult, error) {
				return nil, errors.New("pq: connection reset")
			}

			w := do(http.MethodPost, "/api/v1/interview/submit", map[string]any{
				"questionId": "website-url",
				"value":      "https://shop.example",
			})

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			resp := decode(w)
			Expect(resp["code"]).To(Equal("PERSISTENCE_ERROR"))
			Expect(resp["error"]).To(Equal("internal error"))
		})
	})

	Describe("GET /interview/next", func() {
		It("returns null when everything is answered", func() {
			interviews.nextQuestionFn = func(_ context.Context, _, _ int64) (*model.Question, error) {
				return nil, nil
			}

			w := do(http.MethodGet, "/api/v1/interview/next", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)).To(HaveKeyWithValue("nextQuestion", BeNil()))
		})
	})

	Describe("GET /interview/messages", func() {
		It("serializes message ids as strings", func() {
			interviews.messagesFn = func(_ context.Context, _, _ int64) ([]model.Message, error) {
				return []model.Message{{ID: 555, Role: model.MessageRoleSystem, Content: "Welcome"}}, nil
			}

			w := do(http.MethodGet, "/api/v1/interview/messages", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			msgs := decode(w)["messages"].([]any)
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].(map[string]any)["id"]).To(Equal("555"))
		})
	})

	Describe("POST /interview/actions/:name", func() {
		It("returns stored keys on success", func() {
			interviews.invokeActionFn = func(_ context.Context, _, _ int64, name action.Name) (*service.ActionOutcome, error) {
				Expect(name).To(Equal(action.CrawlWebsite))
				return &service.ActionOutcome{Action: name, StoredKeys: []string{"crawlCache", "crawledData"}}, nil
			}

			w := do(http.MethodPost, "/api/v1/interview/actions/crawlWebsite", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["action"]).To(Equal("crawlWebsite"))
			Expect(resp["storedKeys"]).To(HaveLen(2))
		})

		It("returns 403 ACTION_DENIED when the question does not allow it", func() {
			interviews.invokeActionFn = func(_ context.Context, _, _ int64, name action.Name) (*service.ActionOutcome, error) {
				return nil, fmt.Errorf("%s: %w", name, action.ErrNotAllowed)
			}

			w := do(http.MethodPost, "/api/v1/interview/actions/generateKeywords", nil)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(decode(w)["code"]).To(Equal("ACTION_DENIED"))
		})

		It("returns 403 ACTION_DENIED on a credit denial", func() {
			interviews.invokeActionFn = func(_ context.Context, _, _ int64, _ action.Name) (*service.ActionOutcome, error) {
				return nil, fmt.Errorf("insufficient credits: %w", action.ErrDenied)
			}

			w := do(http.MethodPost, "/api/v1/interview/actions/crawlWebsite", nil)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(decode(w)["code"]).To(Equal("ACTION_DENIED"))
		})

		It("returns 502 ACTION_FAILED when the handler errors", func() {
			interviews.invokeActionFn = func(_ context.Context, _, _ int64, name action.Name) (*service.ActionOutcome, error) {
				return nil, &service.ActionError{Action: name, Err: errors.New("crawl timeout")}
			}

			w := do(http.MethodPost, "/api/v1/interview/actions/crawlWebsite", nil)

			Expect(w.Code).To(Equal(http.StatusBadGateway))
			Expect(decode(w)["code"]).To(Equal("ACTION_FAILED"))
		})
	})

	Describe("POST /interview/revert", func() {
		It("returns the rewound state", func() {
			interviews.revertFn = func(_ context.Context, req service.RevertRequest) (*service.InterviewState, error) {
				Expect(req.TargetQuestionID).To(Equal("business-type"))
				return sampleState(), nil
			}

			w := do(http.MethodPost, "/api/v1/interview/revert", map[string]any{
				"targetQuestionId": "business-type",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("returns 422 for an invalid target", func() {
			interviews.revertFn = func(_ context.Context, _ service.RevertRequest) (*service.InterviewState, error) {
				return nil, service.ErrInvalidTarget
			}

			w := do(http.MethodPost, "/api/v1/interview/revert", map[string]any{"targetIndex": 99})

			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(decode(w)["code"]).To(Equal("VALIDATION_ERROR"))
		})
	})

	Describe("POST /interview/abandon", func() {
		It("acknowledges the abandon", func() {
			w := do(http.MethodPost, "/api/v1/interview/abandon", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("returns 404 when nothing is open", func() {
			interviews.abandonFn = func(_ context.Context, _, _ int64) error {
				return service.ErrNoOpenInterview
			}

			w := do(http.MethodPost, "/api/v1/interview/abandon", nil)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
