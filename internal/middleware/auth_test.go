package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/internal/session"
)

func newSessions() *session.Store {
	return session.NewStore(session.NewCodec("test-secret", 7), false)
}

func sessionCookie(t *testing.T, sessions *session.Store, user *models.User) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	require.NoError(t, sessions.Set(c, user))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func guardRouter(sessions *session.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := RequireAuth(sessions)
	r.GET("/organizer", auth, RequireRole(models.RoleOrganizer), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/admin", auth, RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/either", auth, RequireRole(models.RoleOrganizer, models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doGet(r *gin.Engine, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func user(role models.Role, status models.Status) *models.User {
	return &models.User{ID: uuid.New(), Email: "u@example.com", Role: role, Status: status}
}

func TestRequireAuthNoSessionAlways401(t *testing.T) {
	sessions := newSessions()
	r := guardRouter(sessions)

	// Without a session every route rejects 401, never 403: authentication
	// is checked before role or status.
	for _, path := range []string{"/organizer", "/admin", "/either"} {
		w := doGet(r, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := doGet(r, "/admin", &http.Cookie{Name: session.CookieName, Value: "broken"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthSuspended403(t *testing.T) {
	sessions := newSessions()
	r := guardRouter(sessions)

	cookie := sessionCookie(t, sessions, user(models.RoleOrganizer, models.StatusSuspended))
	for _, path := range []string{"/organizer", "/admin", "/either"} {
		w := doGet(r, path, cookie)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestRequireRoleMismatch403(t *testing.T) {
	sessions := newSessions()
	r := guardRouter(sessions)

	cookie := sessionCookie(t, sessions, user(models.RoleOrganizer, models.StatusApproved))
	w := doGet(r, "/admin", cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	// Generic forbidden, not the pending-approval envelope.
	assert.NotContains(t, w.Body.String(), "requiresApproval")
}

func TestRequireRolePendingOrganizer(t *testing.T) {
	sessions := newSessions()
	r := guardRouter(sessions)

	cookie := sessionCookie(t, sessions, user(models.RoleOrganizer, models.StatusPending))

	// A pending organizer on an organizer route gets the distinct
	// pending-approval rejection.
	w := doGet(r, "/organizer", cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "requiresApproval")

	w = doGet(r, "/either", cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "requiresApproval")

	// On an admin route the same caller is a plain role mismatch.
	w = doGet(r, "/admin", cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "requiresApproval")
}

func TestRequireRoleApprovedPasses(t *testing.T) {
	sessions := newSessions()
	r := guardRouter(sessions)

	organizer := sessionCookie(t, sessions, user(models.RoleOrganizer, models.StatusApproved))
	assert.Equal(t, http.StatusOK, doGet(r, "/organizer", organizer).Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/either", organizer).Code)

	admin := sessionCookie(t, sessions, user(models.RoleAdmin, models.StatusApproved))
	assert.Equal(t, http.StatusOK, doGet(r, "/admin", admin).Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/either", admin).Code)
}

func TestOwnershipOrAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ownerID := uuid.New()

	set := func(u *models.User) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextClaims, &session.Claims{UserID: u.ID, Role: u.Role, Status: u.Status})
		return c
	}

	owner := user(models.RoleOrganizer, models.StatusApproved)
	owner.ID = ownerID
	assert.True(t, OwnershipOrAdmin(set(owner), ownerID))

	foreign := user(models.RoleOrganizer, models.StatusApproved)
	assert.False(t, OwnershipOrAdmin(set(foreign), ownerID))

	admin := user(models.RoleAdmin, models.StatusApproved)
	assert.True(t, OwnershipOrAdmin(set(admin), ownerID))

	// No claims in context at all.
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, OwnershipOrAdmin(c, ownerID))
}
