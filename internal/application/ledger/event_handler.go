package ledger

import (
	"context"
	"fmt"

	"github.com/godown/backend/internal/domain/ledger"
	"github.com/godown/backend/internal/domain/shared"
)

// TranslatorEventHandler subscribes the translator to the event bus. The
// translator's own source+kind check stays authoritative for idempotency;
// wrapping this handler in an idempotent handler only short-circuits obvious
// redeliveries before they reach the database.
type TranslatorEventHandler struct {
	translator *TranslatorService
}

// NewTranslatorEventHandler creates the bus adapter for the translator
func NewTranslatorEventHandler(translator *TranslatorService) *TranslatorEventHandler {
	return &TranslatorEventHandler{translator: translator}
}

// EventTypes returns the event types the translator consumes
func (h *TranslatorEventHandler) EventTypes() []string {
	return []string{
		ledger.EventTypeArrivalConfirmed,
		ledger.EventTypeLoadingConfirmed,
		ledger.EventTypeCrossoverApproved,
		ledger.EventTypeChallanDelivered,
	}
}

// Handle dispatches a bus event to the matching translation
func (h *TranslatorEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch evt := event.(type) {
	case *ledger.ArrivalConfirmed:
		_, err := h.translator.HandleArrivalConfirmed(ctx, evt)
		return err
	case *ledger.LoadingConfirmed:
		_, err := h.translator.HandleLoadingConfirmed(ctx, evt)
		return err
	case *ledger.CrossoverApproved:
		_, err := h.translator.HandleCrossoverApproved(ctx, evt)
		return err
	case *ledger.ChallanDelivered:
		_, err := h.translator.HandleChallanDelivered(ctx, evt)
		return err
	default:
		return fmt.Errorf("unexpected event type %q", event.EventType())
	}
}

// Ensure TranslatorEventHandler implements shared.EventHandler
var _ shared.EventHandler = (*TranslatorEventHandler)(nil)
