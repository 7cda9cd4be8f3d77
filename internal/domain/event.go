package domain

import "time"

// EventType names an outbound event emitted by a market.
type EventType string

const (
	EventShoutPlaced         EventType = "shout.placed"
	EventShoutRejected       EventType = "shout.rejected"
	EventTransactionProposed EventType = "transaction.proposed"
	EventTransactionExecuted EventType = "transaction.executed"
	EventTransactionRejected EventType = "transaction.rejected"
	EventQuoteUpdated        EventType = "quote.updated"
	EventMarketHalted        EventType = "market.halted"
	EventSessionClosed       EventType = "session.closed"
)

// Event is the envelope delivered to event sinks (websocket stream, Kafka,
// logging). Payload is event-type specific and must be JSON-marshallable.
type Event struct {
	Type     EventType `json:"type"`
	MarketID string    `json:"market_id"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}
