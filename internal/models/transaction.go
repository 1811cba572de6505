package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the payment state of a purchase.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Payment methods accepted at checkout.
const (
	PaymentMethodTelebirr     = "telebirr"
	PaymentMethodCBEBirr      = "cbe-birr"
	PaymentMethodAmole        = "amole"
	PaymentMethodBankTransfer = "bank-transfer"
	PaymentMethodCash         = "cash"
)

// ValidTransactionTransition reports whether a transaction status change is allowed.
// Completion counts no inventory (sold is incremented at creation); a refund
// releases it and is only reachable from completed, so it cannot double-apply.
func ValidTransactionTransition(from, to TransactionStatus) bool {
	switch from {
	case TransactionStatusPending:
		return to == TransactionStatusCompleted || to == TransactionStatusFailed
	case TransactionStatusCompleted:
		return to == TransactionStatusRefunded
	}
	return false
}

// Transaction is a ticket purchase, owned by the event's organizer.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	EventID       uuid.UUID         `json:"eventId"`
	OrganizerID   uuid.UUID         `json:"organizerId"`
	TicketID      uuid.UUID         `json:"ticketId"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerName  string            `json:"customerName"`
	Quantity      int               `json:"quantity"`
	AmountCents   int               `json:"amountCents"`
	Status        TransactionStatus `json:"status"`
	PaymentMethod string            `json:"paymentMethod"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
