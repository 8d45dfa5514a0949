package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter(roles ...models.Role) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	group := r.Group("", AuthMiddleware(testSecret, zap.NewNop()))
	if len(roles) > 0 {
		group.Use(RequireRoles(roles...))
	}
	group.GET("/whoami", func(c *gin.Context) {
		role, _ := c.Get(ContextRole)
		c.JSON(http.StatusOK, gin.H{"actor": Actor(c), "role": role})
	})
	return r
}

func token(t *testing.T, role models.Role, expiry time.Duration) string {
	t.Helper()
	tok, err := IssueToken(testSecret, expiry, models.User{ID: 7, Email: "op@guardforce.demo", Role: role})
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newProtectedRouter()
	valid := token(t, models.RoleCCTVOperator, time.Hour)

	tests := []struct {
		name   string
		setup  func(req *http.Request)
		status int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"header", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+valid) }, http.StatusOK},
		{"query", func(req *http.Request) {
			q := req.URL.Query()
			q.Set("token", valid)
			req.URL.RawQuery = q.Encode()
		}, http.StatusOK},
		{"websocket subprotocol", func(req *http.Request) {
			req.Header.Set("Upgrade", "websocket")
			req.Header.Set("Sec-WebSocket-Protocol", "json, authorization.bearer."+valid)
		}, http.StatusOK},
		{"expired", func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token(t, models.RoleAdmin, -time.Minute))
		}, http.StatusUnauthorized},
		{"garbage", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), "op@guardforce.demo")
			}
		})
	}
}

func TestAuthMiddleware_WrongSigningMethod(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": 1, "email": "x@y.z", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, s)
	assert.Error(t, err)
}

func TestParseToken_MissingClaims(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x@y.z"})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseToken(testSecret, s)
	assert.ErrorIs(t, err, errMalformedClaims)
}

func TestRequireRoles(t *testing.T) {
	r := newProtectedRouter(models.RoleAdmin, models.RoleSupervisor)

	for role, want := range map[models.Role]int{
		models.RoleAdmin:        http.StatusOK,
		models.RoleSupervisor:   http.StatusOK,
		models.RoleGuard:        http.StatusForbidden,
		models.RoleCCTVOperator: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, role, time.Hour))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}
