package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/internal/session"
	"github.com/sheger-events/backend/pkg/utils"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	users map[uuid.UUID]*models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeStore) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == identifier || (u.Phone != nil && *u.Phone == identifier) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) Create(_ context.Context, params CreateParams) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == params.Email {
			return nil, ErrDuplicateIdentifier
		}
		if params.Phone != nil && u.Phone != nil && *u.Phone == *params.Phone {
			return nil, ErrDuplicateIdentifier
		}
	}
	u := &models.User{
		ID:           uuid.New(),
		Email:        params.Email,
		Phone:        params.Phone,
		Password:     params.PasswordHash,
		Role:         params.Role,
		Name:         params.Name,
		BusinessName: params.BusinessName,
		Status:       params.Status,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, params UpdateParams) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.BusinessName != nil {
		u.BusinessName = *params.BusinessName
	}
	if params.Phone != nil {
		u.Phone = params.Phone
	}
	if params.PasswordHash != nil {
		u.Password = *params.PasswordHash
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	u.Status = status
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SetEmailVerified(_ context.Context, id uuid.UUID, verified bool) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	u.EmailVerified = verified
	cp := *u
	return &cp, nil
}

func (f *fakeStore) List(_ context.Context, filter ListFilter) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func setup(t *testing.T) (*gin.Engine, *fakeStore, *session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	sessions := session.NewStore(session.NewCodec("test-secret", 7), false)
	h := NewHandler(store, sessions, nil, nil, zap.NewNop())

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.GET("/auth/me", h.Me)
	r.POST("/auth/logout", h.Logout)
	admin := r.Group("/admin", middleware.RequireAuth(sessions), middleware.RequireRole(models.RoleAdmin))
	admin.GET("/organizers", h.ListOrganizers)
	admin.POST("/organizers/:id/status", h.UpdateStatus)
	admin.POST("/users", h.CreateUser)
	return r, store, sessions
}

func seedUser(t *testing.T, store *fakeStore, email, password string, role models.Role, status models.Status) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u, err := store.Create(context.Background(), CreateParams{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Name:         "Test User",
		BusinessName: "Test Biz",
		Status:       status,
	})
	require.NoError(t, err)
	return u
}

func postJSON(r *gin.Engine, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminCookie(t *testing.T, sessions *session.Store, store *fakeStore) *http.Cookie {
	t.Helper()
	admin := seedUser(t, store, "admin@example.com", "admin-pass", models.RoleAdmin, models.StatusApproved)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	require.NoError(t, sessions.Set(c, admin))
	return w.Result().Cookies()[0]
}

func sessionCookieOf(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge > 0 {
			return c
		}
	}
	return nil
}

func TestRegisterCreatesPendingOrganizer(t *testing.T) {
	r, store, _ := setup(t)

	w := postJSON(r, "/auth/register", gin.H{
		"email":        "new@example.com",
		"password":     "password123",
		"name":         "New Organizer",
		"businessName": "New Events",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"requiresApproval":true`)
	// No session issued at registration.
	assert.Nil(t, sessionCookieOf(w))

	created, err := store.FindByIdentifier(context.Background(), "new@example.com")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, models.RoleOrganizer, created.Role)
	assert.Equal(t, models.StatusPending, created.Status)
	// Password is stored hashed.
	assert.NotEqual(t, "password123", created.Password)
}

func TestRegisterDuplicateEmail409(t *testing.T) {
	r, store, _ := setup(t)
	seedUser(t, store, "taken@example.com", "password123", models.RoleOrganizer, models.StatusApproved)

	w := postJSON(r, "/auth/register", gin.H{
		"email":        "taken@example.com",
		"password":     "password123",
		"name":         "Second",
		"businessName": "Second Biz",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterValidation422(t *testing.T) {
	r, _, _ := setup(t)
	w := postJSON(r, "/auth/register", gin.H{"email": "not-an-email", "password": "short"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLoginWrongPassword401(t *testing.T) {
	r, store, _ := setup(t)
	seedUser(t, store, "org@example.com", "right-pass", models.RoleOrganizer, models.StatusApproved)

	w := postJSON(r, "/auth/login", gin.H{"identifier": "org@example.com", "password": "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, sessionCookieOf(w))
}

func TestLoginUnknownIdentifier401(t *testing.T) {
	r, _, _ := setup(t)
	w := postJSON(r, "/auth/login", gin.H{"identifier": "ghost@example.com", "password": "whatever"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRoleMismatch403(t *testing.T) {
	r, store, _ := setup(t)
	seedUser(t, store, "org@example.com", "password1", models.RoleOrganizer, models.StatusApproved)

	w := postJSON(r, "/auth/login", gin.H{"identifier": "org@example.com", "password": "password1", "role": "admin"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, sessionCookieOf(w))
}

func TestLoginSuspended403NoSession(t *testing.T) {
	r, store, _ := setup(t)
	seedUser(t, store, "sus@example.com", "password1", models.RoleOrganizer, models.StatusSuspended)

	w := postJSON(r, "/auth/login", gin.H{"identifier": "sus@example.com", "password": "password1"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, sessionCookieOf(w))
}

func TestLoginPendingSetsSessionAnd403(t *testing.T) {
	r, store, _ := setup(t)
	seedUser(t, store, "pending@example.com", "password1", models.RoleOrganizer, models.StatusPending)

	w := postJSON(r, "/auth/login", gin.H{"identifier": "pending@example.com", "password": "password1"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"requiresApproval":true`)
	// The pending page can still read the claim.
	assert.NotNil(t, sessionCookieOf(w))
}

func TestLoginApproved200WithSession(t *testing.T) {
	r, store, _ := setup(t)
	seedUser(t, store, "ok@example.com", "password1", models.RoleOrganizer, models.StatusApproved)

	w := postJSON(r, "/auth/login", gin.H{"identifier": "ok@example.com", "password": "password1"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := sessionCookieOf(w)
	require.NotNil(t, cookie)

	// Me reflects the claim.
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), "ok@example.com")
}

func TestMeWithoutSession401(t *testing.T) {
	r, _, _ := setup(t)
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateStatusTransitions(t *testing.T) {
	r, store, sessions := setup(t)
	cookie := adminCookie(t, sessions, store)
	org := seedUser(t, store, "org@example.com", "password1", models.RoleOrganizer, models.StatusPending)

	// pending -> approved
	w := postJSON(r, "/admin/organizers/"+org.ID.String()+"/status", gin.H{"status": "approved"}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, _ := store.FindByID(context.Background(), org.ID)
	assert.Equal(t, models.StatusApproved, got.Status)

	// approved -> pending is not a valid transition
	w = postJSON(r, "/admin/organizers/"+org.ID.String()+"/status", gin.H{"status": "pending"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// approved -> suspended -> approved
	w = postJSON(r, "/admin/organizers/"+org.ID.String()+"/status", gin.H{"status": "suspended"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	w = postJSON(r, "/admin/organizers/"+org.ID.String()+"/status", gin.H{"status": "approved"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateStatusRejectsAdminAccounts(t *testing.T) {
	r, store, sessions := setup(t)
	cookie := adminCookie(t, sessions, store)
	other := seedUser(t, store, "admin2@example.com", "password1", models.RoleAdmin, models.StatusApproved)

	w := postJSON(r, "/admin/organizers/"+other.ID.String()+"/status", gin.H{"status": "suspended"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatusUnknownUser404(t *testing.T) {
	r, store, sessions := setup(t)
	cookie := adminCookie(t, sessions, store)

	w := postJSON(r, "/admin/organizers/"+uuid.NewString()+"/status", gin.H{"status": "approved"}, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminCreateUser(t *testing.T) {
	r, store, sessions := setup(t)
	cookie := adminCookie(t, sessions, store)

	// Admin accounts are created approved.
	w := postJSON(r, "/admin/users", gin.H{
		"email": "ops@example.com", "password": "password1", "name": "Ops Admin", "role": "admin",
	}, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	u, _ := store.FindByIdentifier(context.Background(), "ops@example.com")
	require.NotNil(t, u)
	assert.Equal(t, models.StatusApproved, u.Status)

	// Organizer accounts still start pending.
	w = postJSON(r, "/admin/users", gin.H{
		"email": "neworg@example.com", "password": "password1", "name": "New Org",
		"businessName": "Biz", "role": "organizer",
	}, cookie)
	require.Equal(t, http.StatusCreated, w.Code)
	u, _ = store.FindByIdentifier(context.Background(), "neworg@example.com")
	require.NotNil(t, u)
	assert.Equal(t, models.StatusPending, u.Status)
}

func TestListOrganizersFiltersByStatus(t *testing.T) {
	r, store, sessions := setup(t)
	cookie := adminCookie(t, sessions, store)
	seedUser(t, store, "a@example.com", "password1", models.RoleOrganizer, models.StatusPending)
	seedUser(t, store, "b@example.com", "password1", models.RoleOrganizer, models.StatusApproved)

	req := httptest.NewRequest(http.MethodGet, "/admin/organizers?status=pending", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@example.com")
	assert.NotContains(t, w.Body.String(), "b@example.com")
	// The admin account itself is not an organizer.
	assert.NotContains(t, w.Body.String(), "admin@example.com")
}
