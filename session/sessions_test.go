package session_test

import (
	"docflow/authority"
	"docflow/bizerror"
	"docflow/session"
	"docflow/testinfra"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func newAuthRouter(opts session.AuthOptions) *gin.Engine {
	router := gin.New()
	router.Use(bizerror.ErrorHandling())
	router.GET("/me", session.SimpleAuthFilter(opts), func(c *gin.Context) {
		s := session.ExtractSessionFromGinContext(c)
		c.JSON(http.StatusOK, gin.H{"name": s.Identity.Name, "admin": s.Perms.IsWorkflowAdmin()})
	})
	return router
}

func TestExtractSessionFromGinContext(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should return anonymous session when nothing injected", func(t *testing.T) {
		ginCtx, _ := gin.CreateTestContext(httptest.NewRecorder())
		ginCtx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		s := session.ExtractSessionFromGinContext(ginCtx)
		Expect(s.Token).To(BeEmpty())
		Expect(s.Context).ToNot(BeNil())
	})

	t.Run("should return a copy of the injected session", func(t *testing.T) {
		ginCtx, _ := gin.CreateTestContext(httptest.NewRecorder())
		ginCtx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		injected := &session.Session{Token: "a token", Identity: session.Identity{Name: "alice"}, Perms: authority.Permissions{"p1"}}
		session.InjectSessionIntoGinContext(ginCtx, injected)

		s := session.ExtractSessionFromGinContext(ginCtx)
		Expect(s.Identity.Name).To(Equal("alice"))
		s.Perms[0] = "changed"
		Expect(injected.Perms[0]).To(Equal("p1"))
	})

	t.Run("should ignore sessions without token", func(t *testing.T) {
		ginCtx, _ := gin.CreateTestContext(httptest.NewRecorder())
		session.InjectSessionIntoGinContext(ginCtx, &session.Session{})
		_, found := ginCtx.Get(session.KeySecCtx)
		Expect(found).To(BeFalse())
	})
}

func TestSimpleAuthFilter(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should reject request without credential", func(t *testing.T) {
		router := newAuthRouter(session.AuthOptions{})
		status, body, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/me", nil), router)
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body).To(MatchJSON(`{"success":false,"code":"common.unauthenticated","message":"unauthenticated","data":null}`))
	})

	t.Run("should ignore remote user header unless trusted", func(t *testing.T) {
		router := newAuthRouter(session.AuthOptions{})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(session.HeaderRemoteUser, "alice")
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusUnauthorized))
	})

	t.Run("should accept cached token", func(t *testing.T) {
		router := newAuthRouter(session.AuthOptions{})
		token := session.IssueToken(&session.Session{Identity: session.Identity{Name: "bob"}})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: session.KeySecToken, Value: token})
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"name":"bob","admin":false}`))
	})

	t.Run("should build session from trusted remote user and issue a token", func(t *testing.T) {
		router := newAuthRouter(session.AuthOptions{TrustRemoteUser: true, AdminUsers: []string{"Carol"}})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(session.HeaderRemoteUser, "carol")
		status, body, resp := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"name":"carol","admin":true}`))

		cookies := resp.Cookies()
		Expect(len(cookies)).To(Equal(1))
		Expect(cookies[0].Name).To(Equal(session.KeySecToken))
		_, found := session.TokenCache.Get(cookies[0].Value)
		Expect(found).To(BeTrue())
	})

	t.Run("should take permissions from remote groups", func(t *testing.T) {
		router := newAuthRouter(session.AuthOptions{TrustRemoteUser: true})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(session.HeaderRemoteUser, "dave")
		req.Header.Set(session.HeaderRemoteGroups, "staff, workflow:admin")
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"name":"dave","admin":true}`))
	})
}

func TestSessionHelpers(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should normalize identity name", func(t *testing.T) {
		s := session.NewSession(nil, "  Alice ")
		Expect(s.NormalizedName()).To(Equal("alice"))
		Expect(s.Ctx()).ToNot(BeNil())
	})

	t.Run("system session should be admin", func(t *testing.T) {
		s := session.SystemSession(nil)
		Expect(s.Identity.Name).To(Equal(session.SystemIdentityName))
		Expect(s.Perms.IsWorkflowAdmin()).To(BeTrue())
	})
}
