package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"spinwheel/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		account *models.AccountFromAuth
		status  int
		called  bool
	}{
		{"no session", nil, http.StatusUnauthorized, false},
		{"wrong role", &models.AccountFromAuth{ID: 1, Role: models.ROLE_USER}, http.StatusForbidden, false},
		{"admin", &models.AccountFromAuth{ID: 2, Role: models.ROLE_ADMIN}, http.StatusOK, true},
	}

	e := echo.New()
	for _, ts := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin/rewards", nil)
		if ts.account != nil {
			req = req.WithContext(context.WithValue(req.Context(), ctxKeyAuthAccount, ts.account))
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		called := false
		next := func(c echo.Context) error {
			called = true
			return c.NoContent(http.StatusOK)
		}

		err := RequireRole(models.ROLE_ADMIN)(next)(c)
		require.NoError(t, err, ts.name)
		require.Equal(t, ts.called, called, ts.name)
		require.Equal(t, ts.status, rec.Code, ts.name)
	}
}
