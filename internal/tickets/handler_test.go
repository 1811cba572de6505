package tickets

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

	"github.com/sheger-events/backend/internal/events"
	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/internal/session"
)

// fakeStore is an in-memory ticket Store.
type fakeStore struct {
	tickets map[uuid.UUID]*models.Ticket
}

func newFakeStore() *fakeStore {
	return &fakeStore{tickets: make(map[uuid.UUID]*models.Ticket)}
}

func (f *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*models.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) Create(_ context.Context, params CreateParams) (*models.Ticket, error) {
	t := &models.Ticket{
		ID:          uuid.New(),
		EventID:     params.EventID,
		OrganizerID: params.OrganizerID,
		TicketType:  params.TicketType,
		PriceCents:  params.PriceCents,
		Quantity:    params.Quantity,
		CreatedAt:   time.Now(),
	}
	f.tickets[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, params UpdateParams) (*models.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, nil
	}
	if params.Quantity != nil && *params.Quantity < t.Sold {
		return nil, ErrQuantityBelowSold
	}
	if params.TicketType != nil {
		t.TicketType = *params.TicketType
	}
	if params.PriceCents != nil {
		t.PriceCents = *params.PriceCents
	}
	if params.Quantity != nil {
		t.Quantity = *params.Quantity
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	t, ok := f.tickets[id]
	if !ok {
		return nil
	}
	if t.Sold > 0 {
		return ErrTicketsAlreadySold
	}
	delete(f.tickets, id)
	return nil
}

func (f *fakeStore) List(_ context.Context, filter Filter) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range f.tickets {
		if filter.OrganizerID != uuid.Nil && t.OrganizerID != filter.OrganizerID {
			continue
		}
		if filter.EventID != uuid.Nil && t.EventID != filter.EventID {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

// fakeEventStore provides just enough of events.Store for ticket creation.
type fakeEventStore struct {
	events map[uuid.UUID]*models.Event
}

func (f *fakeEventStore) FindByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventStore) Create(context.Context, events.CreateParams) (*models.Event, error) {
	return nil, nil
}
func (f *fakeEventStore) Update(context.Context, uuid.UUID, events.UpdateParams) (*models.Event, error) {
	return nil, nil
}
func (f *fakeEventStore) Approve(context.Context, uuid.UUID) (*models.Event, error) { return nil, nil }
func (f *fakeEventStore) Reject(context.Context, uuid.UUID) (*models.Event, error)  { return nil, nil }
func (f *fakeEventStore) SetPosterKey(context.Context, uuid.UUID, string) (*models.Event, error) {
	return nil, nil
}
func (f *fakeEventStore) Delete(context.Context, uuid.UUID) error { return nil }
func (f *fakeEventStore) List(context.Context, events.Filter) ([]models.Event, int, error) {
	return nil, 0, nil
}

func setup(t *testing.T) (*gin.Engine, *fakeStore, *fakeEventStore, *session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	eventStore := &fakeEventStore{events: make(map[uuid.UUID]*models.Event)}
	sessions := session.NewStore(session.NewCodec("test-secret", 7), false)
	h := NewHandler(store, eventStore, zap.NewNop())

	r := gin.New()
	api := r.Group("/v1", middleware.RequireAuth(sessions))
	api.GET("/tickets", h.List)
	api.POST("/tickets", h.Create)
	api.GET("/tickets/:id", h.Get)
	api.PUT("/tickets/:id", h.Update)
	api.DELETE("/tickets/:id", h.Delete)
	return r, store, eventStore, sessions
}

func cookieFor(t *testing.T, sessions *session.Store, u *models.User) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	require.NoError(t, sessions.Set(c, u))
	return w.Result().Cookies()[0]
}

func organizer() *models.User {
	return &models.User{ID: uuid.New(), Email: "org@example.com", Role: models.RoleOrganizer, Status: models.StatusApproved}
}

func do(r *gin.Engine, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		raw, _ := json.Marshal(body)
		buf.Write(raw)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedEvent(eventStore *fakeEventStore, ownerID uuid.UUID) *models.Event {
	e := &models.Event{ID: uuid.New(), OrganizerID: ownerID, Status: models.EventStatusActive}
	eventStore.events[e.ID] = e
	return e
}

func TestCreateTicket(t *testing.T) {
	r, store, eventStore, sessions := setup(t)
	owner := organizer()
	event := seedEvent(eventStore, owner.ID)
	cookie := cookieFor(t, sessions, owner)

	w := do(r, http.MethodPost, "/v1/tickets", gin.H{
		"eventId": event.ID, "ticketType": "VIP", "priceCents": 150000, "quantity": 50,
	}, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"available":50`)
	assert.Len(t, store.tickets, 1)
}

func TestCreateTicketForeignEvent403(t *testing.T) {
	r, _, eventStore, sessions := setup(t)
	event := seedEvent(eventStore, uuid.New())
	cookie := cookieFor(t, sessions, organizer())

	w := do(r, http.MethodPost, "/v1/tickets", gin.H{
		"eventId": event.ID, "ticketType": "VIP", "priceCents": 150000, "quantity": 50,
	}, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateTicketUnknownEvent404(t *testing.T) {
	r, _, _, sessions := setup(t)
	cookie := cookieFor(t, sessions, organizer())

	w := do(r, http.MethodPost, "/v1/tickets", gin.H{
		"eventId": uuid.New(), "ticketType": "VIP", "priceCents": 150000, "quantity": 50,
	}, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateQuantityBelowSold400(t *testing.T) {
	r, store, eventStore, sessions := setup(t)
	owner := organizer()
	event := seedEvent(eventStore, owner.ID)
	cookie := cookieFor(t, sessions, owner)

	ticket, _ := store.Create(context.Background(), CreateParams{
		EventID: event.ID, OrganizerID: owner.ID, TicketType: "Regular", PriceCents: 50000, Quantity: 100,
	})
	store.tickets[ticket.ID].Sold = 40

	w := do(r, http.MethodPut, "/v1/tickets/"+ticket.ID.String(), gin.H{"quantity": 30}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "sold")

	// Shrinking down to exactly the sold count is allowed.
	w = do(r, http.MethodPut, "/v1/tickets/"+ticket.ID.String(), gin.H{"quantity": 40}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"available":0`)
}

func TestDeleteTicketWithSales400(t *testing.T) {
	r, store, eventStore, sessions := setup(t)
	owner := organizer()
	event := seedEvent(eventStore, owner.ID)
	cookie := cookieFor(t, sessions, owner)

	ticket, _ := store.Create(context.Background(), CreateParams{
		EventID: event.ID, OrganizerID: owner.ID, TicketType: "Regular", PriceCents: 50000, Quantity: 100,
	})
	store.tickets[ticket.ID].Sold = 1

	w := do(r, http.MethodDelete, "/v1/tickets/"+ticket.ID.String(), nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.tickets[ticket.ID].Sold = 0
	w = do(r, http.MethodDelete, "/v1/tickets/"+ticket.ID.String(), nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.tickets)
}

func TestTicketOwnership(t *testing.T) {
	r, store, eventStore, sessions := setup(t)
	owner := organizer()
	event := seedEvent(eventStore, owner.ID)
	ticket, _ := store.Create(context.Background(), CreateParams{
		EventID: event.ID, OrganizerID: owner.ID, TicketType: "Regular", PriceCents: 50000, Quantity: 100,
	})

	foreign := cookieFor(t, sessions, organizer())
	w := do(r, http.MethodGet, "/v1/tickets/"+ticket.ID.String(), nil, foreign)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminCookie := cookieFor(t, sessions, &models.User{
		ID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin, Status: models.StatusApproved,
	})
	w = do(r, http.MethodGet, "/v1/tickets/"+ticket.ID.String(), nil, adminCookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListTicketsScopedToOrganizer(t *testing.T) {
	r, store, eventStore, sessions := setup(t)
	owner := organizer()
	event := seedEvent(eventStore, owner.ID)
	otherEvent := seedEvent(eventStore, uuid.New())
	store.Create(context.Background(), CreateParams{
		EventID: event.ID, OrganizerID: owner.ID, TicketType: "Mine", PriceCents: 1000, Quantity: 10,
	})
	store.Create(context.Background(), CreateParams{
		EventID: otherEvent.ID, OrganizerID: otherEvent.OrganizerID, TicketType: "Theirs", PriceCents: 1000, Quantity: 10,
	})

	cookie := cookieFor(t, sessions, owner)
	w := do(r, http.MethodGet, "/v1/tickets", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mine")
	assert.NotContains(t, w.Body.String(), "Theirs")
}
