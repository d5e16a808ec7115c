package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbid/auction-service/internal/model"
	"github.com/campusbid/auction-service/internal/utils"
)

const testSecret = "unit-test-secret"

func issue(t *testing.T, secret, id, name, role string, ttlMin int) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, name, role, ttlMin)
	require.NoError(t, err)
	return tok.Token
}

func TestParsePrincipal(t *testing.T) {
	raw := issue(t, testSecret, "u1", "Dana", model.RoleBuyer, 5)

	p, err := ParsePrincipal(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, model.Principal{ID: "u1", Name: "Dana", Role: model.RoleBuyer}, p)
}

func TestParsePrincipalRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty token", raw: ""},
		{name: "garbage token", raw: "not.a.jwt"},
		{name: "wrong secret", raw: issue(t, "other-secret", "u1", "Dana", model.RoleBuyer, 5)},
		{name: "expired token", raw: issue(t, testSecret, "u1", "Dana", model.RoleBuyer, -5)},
		{name: "missing role", raw: issue(t, testSecret, "u1", "Dana", "", 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrincipal(testSecret, tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error {
		p, ok := Caller(c)
		require.True(t, ok)
		return c.String(http.StatusOK, p.ID)
	}
	protected := JWTAuth(testSecret)(next)

	t.Run("valid token passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, testSecret, "u1", "Dana", model.RoleBuyer, 5))
		rec := httptest.NewRecorder()

		require.NoError(t, protected(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		require.NoError(t, protected(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		require.NoError(t, protected(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	sellerOnly := RequireRole(model.RoleSeller, model.RoleAdmin)(next)

	run := func(p *model.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if p != nil {
			c.Set(principalKey, *p)
		}
		require.NoError(t, sellerOnly(c))
		return rec
	}

	assert.Equal(t, http.StatusOK, run(&model.Principal{ID: "s", Role: model.RoleSeller}).Code)
	assert.Equal(t, http.StatusOK, run(&model.Principal{ID: "a", Role: model.RoleAdmin}).Code)
	assert.Equal(t, http.StatusForbidden, run(&model.Principal{ID: "b", Role: model.RoleBuyer}).Code)
	assert.Equal(t, http.StatusForbidden, run(nil).Code)
}
