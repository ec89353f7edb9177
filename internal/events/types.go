package events

import "time"

// Event enumerates topics published inside the router and the engine.
type Event string

const (
	EventOrderRouted        Event = "order.routed"
	EventOrderRejected      Event = "order.rejected"
	EventOrderRoutingFailed Event = "order.routing_failed"
	EventTrackerReset       Event = "tracker.reset"
	EventTrackerUpdated     Event = "tracker.updated"
	EventStrategyStatus     Event = "strategy.status"
)

// RouterEvents are the topics mirrored to websocket clients and Kafka.
var RouterEvents = []Event{
	EventOrderRouted,
	EventOrderRejected,
	EventOrderRoutingFailed,
	EventTrackerReset,
	EventTrackerUpdated,
}

// Envelope is what subscribers receive.
type Envelope struct {
	Type      Event     `json:"type"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Rejection is the payload of order.rejected and order.routing_failed.
type Rejection struct {
	Stage  string `json:"stage"`
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}
