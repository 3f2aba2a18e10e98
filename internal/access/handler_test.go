package access_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/access"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Access Handler", func() {
	var (
		service *access.Service
		router  *chi.Mux
		caller  string
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = access.NewService(NewMockRepository(), logger)
		handler := access.NewHandler(service)
		caller = "admin"

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithUserID(r.Context(), caller)))
			})
		})
		router.Post("/flags", handler.CreateFlag)
		router.Get("/flags", handler.ListFlags)
		router.Patch("/flags/{id}/actions", handler.MutateActions)
		router.Put("/users/{id}/flags/{flagID}", handler.Promote)
		router.Delete("/users/{id}/flags/{flagID}", handler.Demote)
		router.Get("/users/{id}/actions", handler.UserActions)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	createFlag := func(body string) access.FlagResponse {
		rec := do(http.MethodPost, "/flags", body)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var flag access.FlagResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &flag)).To(Succeed())
		return flag
	}

	It("creates, mutates and assigns a flag", func() {
		flag := createFlag(`{"name":"student","actions":["checkout"]}`)
		Expect(flag.Actions).To(Equal([]access.Action{"checkout"}))

		rec := do(http.MethodPatch, "/flags/"+flag.ID+"/actions", `{"add":["checkin"],"remove":["checkout"]}`)
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = do(http.MethodPut, "/users/alice/flags/"+flag.ID, "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp access.UserActionsResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.UserID).To(Equal("alice"))
		Expect(resp.Actions).To(Equal([]access.Action{"checkin"}))
		Expect(resp.Flags).To(HaveLen(1))
	})

	It("reports a duplicate name as a conflict", func() {
		createFlag(`{"name":"student","actions":[]}`)
		rec := do(http.MethodPost, "/flags", `{"name":"student"}`)
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(rec.Body.String()).To(ContainSubstring("DUPLICATE_FLAG_NAME"))
	})

	It("maps an unknown flag on promote to 400 and on mutate to 404", func() {
		Expect(do(http.MethodPut, "/users/alice/flags/missing", "").Code).To(Equal(http.StatusBadRequest))
		Expect(do(http.MethodPatch, "/flags/missing/actions", `{"add":["x"]}`).Code).To(Equal(http.StatusNotFound))
	})

	It("reports demoting an unheld flag as a conflict", func() {
		flag := createFlag(`{"name":"student","actions":["checkout"]}`)
		rec := do(http.MethodDelete, "/users/alice/flags/"+flag.ID, "")
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(rec.Body.String()).To(ContainSubstring("NOT_ASSIGNED"))
	})

	It("lets a user read only their own actions without manage_roles", func() {
		caller = "alice"
		Expect(do(http.MethodGet, "/users/alice/actions", "").Code).To(Equal(http.StatusOK))
		Expect(do(http.MethodGet, "/users/bob/actions", "").Code).To(Equal(http.StatusForbidden))
	})

	It("lists flags", func() {
		createFlag(`{"name":"student","actions":["checkout"]}`)
		rec := do(http.MethodGet, "/flags", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp access.FlagsResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Flags).To(HaveLen(1))
	})
})
