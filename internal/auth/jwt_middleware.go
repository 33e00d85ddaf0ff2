package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/facility_triage/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Context keys set by JWTMiddleware.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
	ContextJTI    = "jti"
	ContextExp    = "exp"
)

const issuer = "facility_triage"

// Claims are the custom JWT claims. The JTI comes from the embedded
// jwt.RegisteredClaims.
type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for user valid for ttl. It returns the token and
// its expiry.
func IssueToken(secret string, user *models.User, ttl time.Duration) (string, time.Time, error) {
	expirationTime := time.Now().Add(ttl)
	claims := &Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expirationTime, nil
}

// JWTMiddleware validates the Bearer token and stores the caller identity in
// the gin context. Websocket upgrades may pass the token as the access_token
// query parameter since browsers cannot set headers on them.
func JWTMiddleware(secret string, denylist Denylist) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenMalformed):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is malformed"})
			case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is expired or not valid yet"})
			case errors.Is(err, jwt.ErrTokenSignatureInvalid):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token signature"})
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token: " + err.Error()})
			}
			return
		}
		if !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is invalid"})
			return
		}
		if claims.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token missing JTI (JWT ID)"})
			return
		}
		if claims.Email == "" || !models.IsValidRole(string(claims.Role)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token carries no usable identity"})
			return
		}

		revoked, err := denylist.Contains(c.Request.Context(), claims.ID)
		if err != nil {
			log.Printf("WARN: denylist lookup failed: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to verify token state"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been invalidated (logged out)"})
			return
		}

		c.Set(ContextUserID, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextJTI, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ContextExp, claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(c.Request) {
			if t := c.Query("access_token"); t != "" {
				return t, ""
			}
		}
		return "", "Authorization header is required"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", "Authorization header format must be Bearer {token}"
	}
	return parts[1], ""
}

// ActorFromContext returns the identity JWTMiddleware stored on c.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	id := c.GetString(ContextUserID)
	roleVal, ok := c.Get(ContextRole)
	if id == "" || !ok {
		return models.Actor{}, false
	}
	role, ok := roleVal.(models.Role)
	if !ok {
		return models.Actor{}, false
	}
	return models.Actor{ID: id, Role: role}, true
}
