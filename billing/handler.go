package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tally "github.com/xraph/tally"
	"github.com/xraph/tally/subscription"
)

// EventType classifies a provider event after webhook verification.
type EventType string

const (
	// EventCheckoutCompleted fires when a checkout for a product
	// finished and payment settled.
	EventCheckoutCompleted EventType = "checkout_completed"

	// EventSubscriptionUpdated fires when the provider-side plan
	// changed (upgrade, downgrade, renewal with a new product).
	EventSubscriptionUpdated EventType = "subscription_updated"

	EventSubscriptionPaused    EventType = "subscription_paused"
	EventSubscriptionResumed   EventType = "subscription_resumed"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
)

// ErrUnknownEvent is returned for event types the handler does not map.
var ErrUnknownEvent = errors.New("billing: unknown event type")

// Event is a normalized provider notification. The transport layer is
// responsible for signature verification and for extracting these fields
// from the provider payload.
type Event struct {
	// ID is the provider's event identifier, used as the idempotency
	// key for tier changes. Retried webhooks reuse it.
	ID string

	Type     EventType
	Provider string

	// UserID is the internal user the event concerns.
	UserID string

	// ProductRef identifies the purchased product for tier-changing
	// events. Empty for pure status events.
	ProductRef string

	// Opaque provider references, stored on the subscription verbatim.
	CustomerRef     string
	SubscriptionRef string
	PaymentRef      string

	OccurredAt time.Time
}

// Handler applies normalized provider events to the engine.
type Handler struct {
	engine *tally.Tally
	mapper *Mapper
	logger *slog.Logger
}

// NewHandler creates a billing event handler.
func NewHandler(engine *tally.Tally, mapper *Mapper, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, mapper: mapper, logger: logger}
}

// Apply routes one event into the engine. Tier-changing events are
// idempotent on Event.ID; status events rely on the state machine, so a
// replayed pause against an already-paused subscription surfaces the
// transition error to the caller.
func (h *Handler) Apply(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventCheckoutCompleted, EventSubscriptionUpdated:
		return h.applyTierChange(ctx, ev)
	case EventSubscriptionPaused:
		return h.applyStatusAction(ctx, ev, subscription.ActionPause)
	case EventSubscriptionResumed:
		return h.applyStatusAction(ctx, ev, subscription.ActionResume)
	case EventSubscriptionCancelled:
		return h.applyStatusAction(ctx, ev, subscription.ActionCancel)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}

func (h *Handler) applyTierChange(ctx context.Context, ev Event) error {
	newTier, err := h.mapper.Resolve(ev.Provider, ev.ProductRef)
	if err != nil {
		return err
	}

	if _, err := h.engine.ApplyTierChange(ctx, ev.UserID, newTier, ev.ID); err != nil {
		return err
	}

	if ev.CustomerRef != "" || ev.SubscriptionRef != "" || ev.PaymentRef != "" {
		if err := h.engine.AttachProviderRefs(ctx, ev.UserID, ev.CustomerRef, ev.SubscriptionRef, ev.PaymentRef); err != nil {
			return err
		}
	}

	h.logger.Info("billing event applied",
		"event_id", ev.ID,
		"type", ev.Type,
		"provider", ev.Provider,
		"user_id", ev.UserID,
		"tier", newTier,
	)
	return nil
}

func (h *Handler) applyStatusAction(ctx context.Context, ev Event, action subscription.StatusAction) error {
	if _, err := h.engine.ApplyStatusAction(ctx, ev.UserID, action); err != nil {
		return err
	}

	h.logger.Info("billing event applied",
		"event_id", ev.ID,
		"type", ev.Type,
		"provider", ev.Provider,
		"user_id", ev.UserID,
		"action", action,
	)
	return nil
}
