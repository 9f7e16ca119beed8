package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skilllink/skilllink-api/internal/utils"
)

const secret = "test-secret"

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler(zap.NewNop())})
	chain := append([]fiber.Handler{JWTAuth(secret), AttachJWTLocals()}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		p, _ := CurrentPrincipal(c)
		return c.SendString(string(p.Role) + ":" + p.ID.String())
	})
	app.Get("/", chain...)
	return app
}

func token(t *testing.T, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := utils.SignJWT(secret, id.String(), role, 60)
	require.NoError(t, err)
	return tok
}

func TestJWTAuthBearer(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, id, "worker"))

	resp, err := newApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWTAuthCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token(t, uuid.New(), "user")})

	resp, err := newApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWTAuthRejects(t *testing.T) {
	cases := map[string]string{
		"missing":    "",
		"garbage":    "Bearer not-a-token",
		"bad role":   "Bearer " + token(t, uuid.New(), "admin"),
		"not a uuid": "Bearer " + mustSign(t, "42", "user"),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := newApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func mustSign(t *testing.T, uid, role string) string {
	tok, err := utils.SignJWT(secret, uid, role, 60)
	require.NoError(t, err)
	return tok
}

func TestRequireRoles(t *testing.T) {
	app := newApp(RequireRoles("worker"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, uuid.New(), "user"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, uuid.New(), "worker"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(3, 15*time.Minute, zap.NewNop())
	app := fiber.New()
	app.Get("/", l.Handler(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
