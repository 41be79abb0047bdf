package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(testSecret), func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": caller.ID, "role": caller.Role})
	})
	r.GET("/admin", RequireAuth(testSecret), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newTestRouter()
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("valid token exposes caller", func(t *testing.T) {
		tok := signed(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "alice", "role": RoleCustomer, "exp": exp})
		w := do(r, "/me", tok)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"alice","role":"customer"}`, w.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "alice", "exp": exp})
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", tok).Code)
	})

	t.Run("expired", func(t *testing.T) {
		tok := signed(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Minute).Unix()})
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", tok).Code)
	})

	t.Run("no exp", func(t *testing.T) {
		tok := signed(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "alice"})
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", tok).Code)
	})

	t.Run("other alg rejected", func(t *testing.T) {
		tok := signed(t, jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"sub": "alice", "exp": exp})
		assert.Equal(t, http.StatusUnauthorized, do(r, "/me", tok).Code)
	})
}

func TestRequireRole(t *testing.T) {
	r := newTestRouter()
	exp := time.Now().Add(time.Hour).Unix()

	customer := signed(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "bob", "role": RoleCustomer, "exp": exp})
	admin := signed(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "root", "role": RoleAdmin, "exp": exp})

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", customer).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", admin).Code)
}
