package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/party-rides/internal/notify"
)

// FallbackNotifier tries each notifier in order and stops at the first that
// delivers. Typical chain: live websocket, then the durable push path.
type FallbackNotifier struct {
	chain  []notify.Notifier
	logger *slog.Logger
}

func NewFallbackNotifier(logger *slog.Logger, chain ...notify.Notifier) *FallbackNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]notify.Notifier, 0, len(chain))
	for _, n := range chain {
		if n != nil {
			out = append(out, n)
		}
	}
	return &FallbackNotifier{chain: out, logger: logger}
}

func (f *FallbackNotifier) Notify(ctx context.Context, env notify.Envelope) error {
	var errs []error
	for _, n := range f.chain {
		err := n.Notify(ctx, env)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNoSession) {
			f.logger.Warn("notifier failed, trying next", "user_id", env.UserID, "reason", env.Reason, "error", err)
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return errors.New("no notifier configured")
	}
	return errors.Join(errs...)
}
