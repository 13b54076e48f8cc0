package models

import "time"

// EventType identifies an outbound domain event. The notification layer
// (out of scope here) subscribes to these.
type EventType string

const (
	EventTradeDetected   EventType = "trade_detected"
	EventMirrorExecuted  EventType = "mirror_executed"
	EventMirrorSimulated EventType = "mirror_simulated"
	EventMirrorSkipped   EventType = "mirror_skipped"
	EventMirrorFailed    EventType = "mirror_failed"
)

// DomainEvent is the typed message pushed to the notification boundary.
// Exactly one of Intent/Outcome is set depending on Type.
type DomainEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	TargetWallet string         `json:"target_wallet,omitempty"`
	Intent       *TradeIntent   `json:"intent,omitempty"`
	Outcome      *MirrorOutcome `json:"outcome,omitempty"`
	EmittedAt    time.Time      `json:"emitted_at"`
}
