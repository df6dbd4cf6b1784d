package dispatch

import (
	"context"
	"log/slog"

	"github.com/example/party-rides/internal/notify"
)

// LogNotifier only logs. It is the notifier of last resort for local runs
// without websocket clients or a push backend.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, env notify.Envelope) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "user_id", env.UserID, "reason", env.Reason, "title", env.Title, "deep_link", env.DeepLink)
	return nil
}
