package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/mocks"
	"classchat-service/internal/models"
)

const testSecret = "test-secret"

func authRouter(users *mocks.UserRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Auth(testSecret, users), func(c *gin.Context) {
		viewer, ok := ViewerFrom(c)
		if !ok {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": viewer.ID, "role": viewer.Role, "section": viewer.Section})
	})
	return r
}

func TestAuthResolvesViewerFromBearerToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, 3).Return(models.User{
		ID:      3,
		Name:    "Alice",
		Role:    "student",
		Section: sql.NullString{String: "Section 1", Valid: true},
		Course:  sql.NullString{String: "Mathematics", Valid: true},
	}, nil)

	token, err := GenerateAccessToken(3, testSecret, time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authRouter(users).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"section":"Section 1"`)
}

func TestAuthAcceptsTokenQueryParam(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, 3).Return(models.User{ID: 3, Name: "Alice", Role: "student"}, nil)

	token, err := GenerateAccessToken(3, testSecret, time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	authRouter(users).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := authRouter(users)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	token, err := GenerateAccessToken(3, testSecret, -time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authRouter(users).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsUnknownUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, 9).Return(models.User{}, assert.AnError)

	token, err := GenerateAccessToken(9, testSecret, time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authRouter(users).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
