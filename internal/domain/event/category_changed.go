package event

import "time"

type Action string

const (
	ActionDeleted       Action = "deleted"
	ActionStatusChanged Action = "status_changed"
)

// CategoryChanged tells every browsing session that cached listings are stale.
type CategoryChanged struct {
	CategoryID string    `json:"category_id"`
	Action     Action    `json:"action"`
	IsActive   *bool     `json:"is_active,omitempty"` // Set for status changes
	Origin     string    `json:"origin"`              // Session that made the change
	At         time.Time `json:"at"`
}

func (e *CategoryChanged) EventType() string {
	return "CategoryChanged"
}

func (e *CategoryChanged) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}
