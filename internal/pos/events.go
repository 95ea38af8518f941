package pos

import (
	"github.com/angelmondragon/possync/internal/reachability"
	"github.com/angelmondragon/possync/internal/syncer"
)

type EventType string

const (
	EventState    EventType = "state"
	EventEviction EventType = "eviction"
	EventPending  EventType = "pending"
)

// Event is pushed to UI subscribers. Exactly one payload field is set.
type Event struct {
	Type     EventType             `json:"type"`
	State    *reachability.State   `json:"state,omitempty"`
	Eviction *syncer.EvictionEvent `json:"eviction,omitempty"`
	Pending  *int                  `json:"pending,omitempty"`
}
