package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/models"
)

func testClient(organizerID uuid.UUID) *Client {
	return &Client{
		ID:          uuid.New().String(),
		OrganizerID: organizerID,
		UserID:      uuid.New(),
		send:        make(chan WSMessage, 8),
	}
}

func TestHubBroadcastReachesOnlyOwnRoom(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	orgA, orgB := uuid.New(), uuid.New()

	a1 := testClient(orgA)
	a2 := testClient(orgA)
	b1 := testClient(orgB)
	for _, c := range []*Client{a1, a2, b1} {
		c.hub = hub
		hub.Register(c)
	}
	assert.Equal(t, 2, hub.ClientCount(orgA))
	assert.Equal(t, 1, hub.ClientCount(orgB))

	hub.Broadcast(orgA, EventSale, map[string]int{"quantity": 2})

	for _, c := range []*Client{a1, a2} {
		select {
		case msg := <-c.send:
			assert.Equal(t, EventSale, msg.Event)
		default:
			t.Fatalf("client %s did not receive the sale", c.ID)
		}
	}
	select {
	case <-b1.send:
		t.Fatal("foreign organizer room received the sale")
	default:
	}
}

func TestHubUnregisterEmptiesRoom(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	org := uuid.New()
	c := testClient(org)
	c.hub = hub

	hub.Register(c)
	require.Equal(t, 1, hub.ClientCount(org))
	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount(org))

	// Broadcasting to an empty room is a no-op.
	hub.Broadcast(org, EventSale, nil)
}

func TestSalesFeedPublishesToOwnerRoom(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	feed := NewSalesFeed(hub)

	org := uuid.New()
	c := testClient(org)
	c.hub = hub
	hub.Register(c)

	tx := &models.Transaction{
		ID:          uuid.New(),
		EventID:     uuid.New(),
		TicketID:    uuid.New(),
		OrganizerID: org,
		CustomerName: "Hana Bekele",
		Quantity:    2,
		AmountCents: 100000,
	}
	require.NoError(t, feed.PublishSale(context.Background(), tx))

	select {
	case msg := <-c.send:
		assert.Equal(t, EventSale, msg.Event)
		var sale SaleEvent
		require.NoError(t, json.Unmarshal(msg.Data, &sale))
		assert.Equal(t, tx.ID, sale.TransactionID)
		assert.Equal(t, 2, sale.Quantity)
		assert.Equal(t, 100000, sale.AmountCents)
	default:
		t.Fatal("owner room did not receive the sale")
	}
}
