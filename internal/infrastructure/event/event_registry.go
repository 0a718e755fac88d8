package event

import (
	"github.com/godown/backend/internal/domain/ledger"
)

// RegisterAllEvents registers all domain event types with the serializer.
// This is required for the Subscriber to deserialize inbound event payloads.
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(ledger.EventTypeArrivalConfirmed, &ledger.ArrivalConfirmed{})
	serializer.Register(ledger.EventTypeLoadingConfirmed, &ledger.LoadingConfirmed{})
	serializer.Register(ledger.EventTypeCrossoverApproved, &ledger.CrossoverApproved{})
	serializer.Register(ledger.EventTypeChallanDelivered, &ledger.ChallanDelivered{})
}
