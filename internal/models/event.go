package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusActive    EventStatus = "active"
	EventStatusEnded     EventStatus = "ended"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event represents a ticketed event owned by a single organizer.
type Event struct {
	ID           uuid.UUID   `json:"id"`
	OrganizerID  uuid.UUID   `json:"organizerId"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Category     string      `json:"category"`
	StartDate    time.Time   `json:"startDate"`
	EndDate      time.Time   `json:"endDate"`
	Venue        string      `json:"venue"`
	VenueAddress string      `json:"venueAddress,omitempty"`
	Status       EventStatus `json:"status"`
	Approved     bool        `json:"approved"`
	PosterKey    *string     `json:"posterKey,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
