package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/party-rides/internal/observability"
)

type Reason string

const (
	ReasonPickupConfirmed        Reason = "pickup_confirmed"
	ReasonPassengerAdded         Reason = "passenger_added"
	ReasonPassengerRemoved       Reason = "passenger_removed"
	ReasonKickConfirmed          Reason = "kick_confirmed"
	ReasonPassengerLeft          Reason = "passenger_left"
	ReasonOfferCancelled         Reason = "offer_cancelled"
	ReasonOfferCancelConfirmed   Reason = "offer_cancel_confirmed"
	ReasonRequestCancelledByUser Reason = "request_cancelled_by_user"
)

// Notification is one message to one user about a ledger change.
type Notification interface {
	Recipient() string
	Reason() Reason
	Envelope() Envelope
}

// Envelope is the transport-neutral rendering of a Notification. It is what
// notifiers deliver and what travels over kafka and websockets.
type Envelope struct {
	UserID    string            `json:"user_id"`
	Reason    Reason            `json:"reason"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	DeepLink  string            `json:"deep_link,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notifier delivers one envelope. Delivery guarantees (retry, persistence)
// belong to the implementation.
type Notifier interface {
	Notify(ctx context.Context, env Envelope) error
}

type NotifierFunc func(ctx context.Context, env Envelope) error

func (f NotifierFunc) Notify(ctx context.Context, env Envelope) error { return f(ctx, env) }

// Dispatcher hands each notification to the notifier on its own; a failed
// delivery is logged and counted and never stops the rest of the batch.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewDispatcher(n Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{notifier: n, logger: logger, now: time.Now}
}

// Dispatch returns the number of notifications that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, ns ...Notification) int {
	if d == nil || d.notifier == nil {
		return 0
	}
	failed := 0
	for _, n := range ns {
		env := n.Envelope()
		if env.CreatedAt.IsZero() {
			env.CreatedAt = d.now()
		}
		if err := d.notifier.Notify(ctx, env); err != nil {
			failed++
			observability.NotificationsTotal.WithLabelValues(string(env.Reason), "error").Inc()
			d.logger.Error("notification failed", "reason", env.Reason, "user_id", env.UserID, "error", err)
			continue
		}
		observability.NotificationsTotal.WithLabelValues(string(env.Reason), "ok").Inc()
	}
	return failed
}
