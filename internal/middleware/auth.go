package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"classchat-service/internal/models"
	"classchat-service/internal/repositories"
)

const viewerKey = "viewer"

// Claims is the access token payload. Subject carries the user id.
type Claims struct {
	UserID int `json:"uid"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an HS256 token for the user. Used by tests and
// by operators minting service tokens; login itself lives elsewhere.
func GenerateAccessToken(userID int, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAccessToken validates the token signature and expiry.
func ParseAccessToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Auth authenticates the request and stashes the resolved Viewer in the gin
// context. Websocket and SSE clients cannot set headers, so a token query
// parameter is accepted as a fallback.
func Auth(secret string, users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := ParseAccessToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		c.Set(viewerKey, models.Viewer{
			ID:      user.ID,
			Name:    user.Name,
			Role:    user.Role,
			Section: user.Section.String,
			Course:  user.Course.String,
		})
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

// ViewerFrom returns the authenticated viewer placed by Auth.
func ViewerFrom(c *gin.Context) (models.Viewer, bool) {
	v, ok := c.Get(viewerKey)
	if !ok {
		return models.Viewer{}, false
	}
	viewer, ok := v.(models.Viewer)
	return viewer, ok
}

// SetViewer injects a viewer directly, for handler tests.
func SetViewer(c *gin.Context, viewer models.Viewer) {
	c.Set(viewerKey, viewer)
}
