package middleware

import (
	"net/http"
	"strings"

	"caixapdv/internal/apierror"
	"caixapdv/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"

	roleAdmin = "admin"
)

// JWTClaims are the custom claims embedded in every access token.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	StoreID  string `json:"store_id"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token on every protected route. Browsers'
// EventSource cannot set headers, so the stream route may pass the token as
// ?access_token= instead.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenStr = strings.TrimPrefix(header, "Bearer ")
		} else if q := c.Query("access_token"); q != "" && strings.HasSuffix(c.FullPath(), "/stream") {
			tokenStr = q
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticação necessária"))
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token inválido ou expirado"))
			return
		}
		// Refresh tokens are long-lived and only good for /v1/auth/refresh
		if claims.Type != dto.TokenAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token inválido ou expirado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !allowed[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Permissão insuficiente"))
			return
		}
		c.Next()
	}
}

// RequireStore rejects non-admin users acting on another store's
// :storeID route.
func RequireStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CanAccessStore(c, c.Param("storeID")) {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Acesso negado a esta loja"))
			return
		}
		c.Next()
	}
}

// CanAccessStore reports whether the authenticated user may act on storeID.
func CanAccessStore(c *gin.Context, storeID string) bool {
	claims := GetClaims(c)
	if claims == nil {
		return false
	}
	return claims.Role == roleAdmin || claims.StoreID == storeID
}

// GetClaims returns the typed claims, or nil on unauthenticated routes.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}

// Actor turns the claims into the user recorded on register operations.
func Actor(c *gin.Context) dto.Actor {
	claims := GetClaims(c)
	if claims == nil {
		return dto.Actor{}
	}
	id, _ := uuid.Parse(claims.UserID)
	name := claims.Name
	if name == "" {
		name = claims.Username
	}
	return dto.Actor{ID: id, Name: name}
}
