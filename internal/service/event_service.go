package service

import (
	"encoding/json"
	"log/slog"
	"time"

	"trade_core/internal/domain"
)

// EventService writes domain events to the append-only log, one record per
// state transition. Payloads are serialized to JSON; if serialization
// fails the record is still written with an empty payload so the log keeps
// its position sequence. The audit trail degrades but matching does not stop.
// Implements domain.EventLog.
type EventService struct {
	repo domain.EventRepository
}

// NewEventService creates the event log writer.
func NewEventService(repo domain.EventRepository) *EventService {
	return &EventService{repo: repo}
}

// Append records one domain event. A failed write is returned to the
// caller; a failed payload serialization is not.
func (s *EventService) Append(eventType string, aggregateID string, payload any) error {
	var payloadJSON string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			slog.Warn("failed to serialize event payload",
				slog.String("event_type", eventType),
				slog.String("aggregate_id", aggregateID),
				slog.Any("error", err))
		} else {
			payloadJSON = string(b)
		}
	}

	rec := &domain.EventRecord{
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payloadJSON,
		Timestamp:   time.Now(),
	}
	return s.repo.AppendEvent(rec)
}
