package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

// Caller is the pre-validated identity of the request.
type Caller struct {
	ID   string
	Role string
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// CallerFrom reads what RequireAuth stored. ok is false on unauthenticated routes.
func CallerFrom(c *gin.Context) (Caller, bool) {
	id := c.GetString(CtxUserIDKey)
	if id == "" {
		return Caller{}, false
	}
	return Caller{ID: id, Role: c.GetString(CtxRoleKey)}, true
}

// RequireAuth: Authorization: Bearer <token> を検証して context に sub/role を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		scheme, tokenStr, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing or malformed bearer token")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenStr), claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid sub")
			return
		}
		role, _ := claims["role"].(string)

		c.Set(CtxUserIDKey, sub)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r != "" {
			allowed[r] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		role := c.GetString(CtxRoleKey)
		if _, ok := allowed[role]; !ok {
			abortJSON(c, http.StatusForbidden, "UNAUTHORIZED", "forbidden")
			return
		}
		c.Next()
	}
}
