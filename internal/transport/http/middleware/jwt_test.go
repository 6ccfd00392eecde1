package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/pkg/jwtutil"
	"localchat/internal/pkg/logger"
)

func newTestRouter() (*gin.Engine, *bool) {
	gin.SetMode(gin.TestMode)
	reached := false
	r := gin.New()
	r.Use(RequestLogger(logger.Discard()))
	r.GET("/private", AuthJWT("secret"), func(c *gin.Context) {
		reached = true
		userID, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return r, &reached
}

func TestAuthJWTRejects(t *testing.T) {
	expired, err := jwtutil.GenerateToken("secret", -time.Minute, 1, "ada")
	require.NoError(t, err)

	cases := map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"bad token":    "Bearer nope",
		"expired":      "Bearer " + expired,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			r, reached := newTestRouter()
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, *reached)
			assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
		})
	}
}

func TestAuthJWTAccepts(t *testing.T) {
	token, err := jwtutil.GenerateToken("secret", time.Hour, 5, "ada")
	require.NoError(t, err)

	r, reached := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *reached)
	assert.JSONEq(t, `{"user_id":5}`, rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
}
