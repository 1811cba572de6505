package models

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is a ticket tier for an event (e.g. "Regular", "VIP").
// Sold is maintained by transaction creation/refund and never exceeds Quantity.
type Ticket struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"eventId"`
	OrganizerID uuid.UUID `json:"organizerId"`
	TicketType  string    `json:"ticketType"`
	PriceCents  int       `json:"priceCents"`
	Quantity    int       `json:"quantity"`
	Sold        int       `json:"sold"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Available returns the remaining purchasable quantity.
func (t *Ticket) Available() int {
	return t.Quantity - t.Sold
}
