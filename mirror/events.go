package mirror

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// EventSink receives domain events at the notification boundary.
// Implementations must not block; slow consumers should buffer.
type EventSink interface {
	Emit(event *models.DomainEvent)
}

// LogSink writes events to the process log. It is the default sink
// when no notification layer is attached.
type LogSink struct{}

func (LogSink) Emit(event *models.DomainEvent) {
	switch {
	case event.Intent != nil:
		log.Printf("[Events] %s target=%s kind=%s amount=%s",
			event.Type, utils.ShortAddress(event.TargetWallet),
			event.Intent.Kind, event.Intent.AmountDisplay)
	case event.Outcome != nil:
		log.Printf("[Events] %s user=%s token=%s status=%s reason=%q",
			event.Type, event.Outcome.UserID,
			utils.ShortAddress(event.Outcome.Token),
			event.Outcome.Status, event.Outcome.Reason)
	default:
		log.Printf("[Events] %s", event.Type)
	}
}

func newTradeEvent(target string, intent *models.TradeIntent) *models.DomainEvent {
	return &models.DomainEvent{
		ID:           uuid.New().String(),
		Type:         models.EventTradeDetected,
		TargetWallet: target,
		Intent:       intent,
		EmittedAt:    time.Now(),
	}
}

func newOutcomeEvent(outcome *models.MirrorOutcome) *models.DomainEvent {
	var typ models.EventType
	switch outcome.Status {
	case models.MirrorStatusExecuted:
		typ = models.EventMirrorExecuted
	case models.MirrorStatusSimulated:
		typ = models.EventMirrorSimulated
	case models.MirrorStatusSkipped:
		typ = models.EventMirrorSkipped
	default:
		typ = models.EventMirrorFailed
	}
	return &models.DomainEvent{
		ID:           uuid.New().String(),
		Type:         typ,
		TargetWallet: outcome.TargetWallet,
		Outcome:      outcome,
		EmittedAt:    time.Now(),
	}
}
