//go:build unit

package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/handler/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	act actor.Actor
	err error
}

func (s stubValidator) ValidateToken(string) (actor.Actor, error) {
	return s.act, s.err
}

func newEngine(mw *middleware.AuthMiddleware, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handlers := append([]gin.HandlerFunc{mw.RequireAuth()}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		act, ok := middleware.GetActor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"actor_id": act.ID})
	})
	engine.GET("/protected", handlers...)
	return engine
}

func TestRequireAuth(t *testing.T) {
	act := actor.Actor{ID: uuid.New(), Role: actor.RoleUser}

	t.Run("bearer token", func(t *testing.T) {
		engine := newEngine(middleware.NewAuthMiddleware(stubValidator{act: act}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("cookie token", func(t *testing.T) {
		engine := newEngine(middleware.NewAuthMiddleware(stubValidator{act: act}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "some-token"})
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		engine := newEngine(middleware.NewAuthMiddleware(stubValidator{act: act}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		engine := newEngine(middleware.NewAuthMiddleware(stubValidator{err: errors.New("bad token")}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	request := func(t *testing.T, role actor.Role, allowed ...actor.Role) int {
		t.Helper()
		mw := middleware.NewAuthMiddleware(stubValidator{act: actor.Actor{ID: uuid.New(), Role: role}})
		engine := newEngine(mw, mw.RequireRole(allowed...))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("allowed role passes", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, request(t, actor.RoleAdmin, actor.RoleCashier, actor.RoleAdmin))
	})

	t.Run("other roles are rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, request(t, actor.RoleUser, actor.RoleCashier, actor.RoleAdmin))
	})
}

func TestGetActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := middleware.GetActor(c)
	require.False(t, ok)
}
