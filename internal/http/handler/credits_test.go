package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rankwell.app/onboard/internal/http/handler"
	"rankwell.app/onboard/internal/http/middleware"
	"rankwell.app/onboard/internal/http/router"
	"rankwell.app/onboard/internal/model"
	"rankwell.app/onboard/internal/store"
)

var _ = Describe("CreditsHandler", func() {
	var (
		engine  *gin.Engine
		credits *mockCreditService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		credits = &mockCreditService{}
		auth := &mockAuthService{
			validateSessionFn: func(_ context.Context, _ int64) (*model.User, *model.Account, error) {
				return &model.User{ID: 9, AccountID: 7}, &model.Account{ID: 7, Slug: "acme"}, nil
			},
		}

		engine = gin.New()
		authed := engine.Group("/api/v1")
		authed.Use(middleware.RequireAuth(auth))
		router.CreditsRouter(authed.Group("/credits"), handler.NewCreditsHandler(credits))
	})

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer 42")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	It("returns the balance for the session account", func() {
		credits.balanceFn = func(_ context.Context, accountID int64) (*model.CreditAccount, error) {
			return &model.CreditAccount{AccountID: accountID, Balance: 47}, nil
		}

		w := get("/api/v1/credits")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["balance"]).To(Equal(float64(47)))
		Expect(resp["accountId"]).To(Equal("7"))
	})

	It("returns 404 when no credit account exists yet", func() {
		credits.balanceFn = func(_ context.Context, _ int64) (*model.CreditAccount, error) {
			return nil, store.ErrNotFound
		}

		w := get("/api/v1/credits")

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("passes the limit through to history", func() {
		var gotLimit int32
		credits.historyFn = func(_ context.Context, _ int64, limit int32) ([]model.CreditEntry, error) {
			gotLimit = limit
			return []model.CreditEntry{{ID: 1, Operation: model.CreditOpSignupGrant, Amount: 50}}, nil
		}

		w := get("/api/v1/credits/history?limit=5")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gotLimit).To(Equal(int32(5)))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["entries"]).To(HaveLen(1))
	})

	It("rejects a malformed limit", func() {
		w := get("/api/v1/credits/history?limit=not-a-number")

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
