package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"

	wsProtocolPrefix = "authorization.bearer."
)

var errMalformedClaims = errors.New("malformed token claims")

// Claims is the session carried by a bearer token.
type Claims struct {
	UserID uint
	Email  string
	Role   models.Role
}

// IssueToken signs an HS256 token for user valid for expiry.
func IssueToken(secret string, expiry time.Duration, user models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     time.Now().Add(expiry).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errMalformedClaims
	}
	id, okID := mc["user_id"].(float64)
	email, okEmail := mc["email"].(string)
	role, okRole := mc["role"].(string)
	if !okID || !okEmail || !okRole {
		return Claims{}, errMalformedClaims
	}
	return Claims{UserID: uint(id), Email: email, Role: models.Role(role)}, nil
}

// bearerToken finds the token in the Authorization header, the websocket
// subprotocol "authorization.bearer.<token>" or the token query parameter.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c.GetHeader("Upgrade") == "websocket" {
		for _, p := range strings.Split(c.GetHeader("Sec-WebSocket-Protocol"), ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, wsProtocolPrefix) {
				return strings.TrimPrefix(p, wsProtocolPrefix)
			}
		}
	}
	return c.Query("token")
}

func AuthMiddleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			logger.Debug("Rejected bearer token", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// Actor names the authenticated caller for audit fields.
func Actor(c *gin.Context) string {
	if email := c.GetString(ContextEmail); email != "" {
		return email
	}
	return "unknown"
}
