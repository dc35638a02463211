package messages

import (
	"encoding/json"
	"time"
)

const (
	ScopeUser = "user"
	ScopeAll  = "all"
)

// Notification — событие realtime-канала, опубликованное в send.events.
// Каждый инстанс API доставляет его своим локальным соединениям;
// InstanceID нужен, чтобы издатель не доставил событие повторно сам себе.
type Notification struct {
	InstanceID string `json:"instance_id"`

	Scope string `json:"scope"` // "user" | "all"
	Email string `json:"email,omitempty"`

	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`

	SentAt time.Time `json:"sent_at"`
}
