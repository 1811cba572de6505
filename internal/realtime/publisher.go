package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sheger-events/backend/internal/models"
)

// SaleEvent is the payload pushed to the back-office feed when a payment completes.
type SaleEvent struct {
	TransactionID uuid.UUID `json:"transactionId"`
	EventID       uuid.UUID `json:"eventId"`
	TicketID      uuid.UUID `json:"ticketId"`
	CustomerName  string    `json:"customerName"`
	Quantity      int       `json:"quantity"`
	AmountCents   int       `json:"amountCents"`
	At            time.Time `json:"at"`
}

// SalesFeed adapts the hub to the transaction handler's publisher contract.
type SalesFeed struct {
	hub *Hub
}

// NewSalesFeed creates a sales feed publisher backed by the hub.
func NewSalesFeed(hub *Hub) *SalesFeed {
	return &SalesFeed{hub: hub}
}

// PublishSale fans a completed sale out to the owning organizer's room.
func (f *SalesFeed) PublishSale(_ context.Context, tx *models.Transaction) error {
	f.hub.BroadcastAndPublish(tx.OrganizerID, EventSale, SaleEvent{
		TransactionID: tx.ID,
		EventID:       tx.EventID,
		TicketID:      tx.TicketID,
		CustomerName:  tx.CustomerName,
		Quantity:      tx.Quantity,
		AmountCents:   tx.AmountCents,
		At:            time.Now(),
	})
	return nil
}
