package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fbrgate/internal/config"
)

const (
	ContextKeyUserID     = "user_id"
	ContextKeyRole       = "role"
	ContextKeyBusinesses = "business_ids"
)

// RoleAdmin may manage businesses; operators are scoped to the business IDs
// listed in their token.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Claims is the payload of the externally issued bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Role        string   `json:"role"`
	BusinessIDs []string `json:"business_ids"`
}

// AuthMiddleware returns Gin middleware that validates the bearer token and
// injects the caller's identity and business scope. Token issuance lives in an
// external identity service; only verification happens here.
func AuthMiddleware(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "missing or invalid authorization header")
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			abortUnauthorized(c, "invalid subject claim")
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyBusinesses, claims.BusinessIDs)
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the caller holds the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "admin role required"},
			})
			return
		}
		c.Next()
	}
}

// GetUserID extracts the authenticated user's ID from the request context.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil, errors.New("user id not in context")
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("user id has wrong type")
	}
	return id, nil
}

// GetRole extracts the caller's role from the request context.
func GetRole(c *gin.Context) string {
	v, exists := c.Get(ContextKeyRole)
	if !exists {
		return ""
	}
	role, _ := v.(string)
	return role
}

// CanAccessBusiness reports whether the caller may operate on the given
// business: admins always, operators only within their token's scope.
func CanAccessBusiness(c *gin.Context, businessID uuid.UUID) bool {
	if GetRole(c) == RoleAdmin {
		return true
	}
	v, exists := c.Get(ContextKeyBusinesses)
	if !exists {
		return false
	}
	ids, ok := v.([]string)
	if !ok {
		return false
	}
	for _, id := range ids {
		if id == businessID.String() {
			return true
		}
	}
	return false
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": "UNAUTHORIZED", "message": msg},
	})
}
