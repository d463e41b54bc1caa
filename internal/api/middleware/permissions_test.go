package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"guildhub/internal/cache"
	"guildhub/internal/models"
	"guildhub/internal/perms"
	"guildhub/internal/testutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoke(t *testing.T, mw echo.MiddlewareFunc, userID string, systemAdmin bool) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("userID", userID)
	c.Set("isSystemAdmin", systemAdmin)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRequireSystemAdmin(t *testing.T) {
	mw := RequireSystemAdmin()

	rec := invoke(t, mw, "u1", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = invoke(t, mw, "u1", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	fixture := testutil.NewFixture(t)
	owner := fixture.User("owner")
	outsider := fixture.User("outsider")
	category := fixture.Category("ops")
	group := fixture.Group(category.ID, "squad", owner.ID, models.JoinModeOpen)

	perm := fixture.Store.AddPermission(models.Permission{
		URN:  "guild:reports:view",
		Name: "View reports",
	})
	require.NoError(t, fixture.Store.CreateGroupPermission(context.Background(), &models.GroupPermission{
		GroupID:      group.ID,
		PermissionID: &perm.ID,
		TargetType:   models.TargetAllMembers,
	}))

	svc := perms.NewService(fixture.Store, cache.NewMemoryCache(), time.Minute)
	mw := RequirePermission(svc, "guild:reports:view")

	rec := invoke(t, mw, owner.ID, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = invoke(t, mw, outsider.ID, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// System admins bypass URN checks entirely.
	rec = invoke(t, mw, outsider.ID, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}
