package engine

import (
	"context"
	"log/slog"
)

// Notification is the payload handed to the notifier when a step becomes
// active and its assignee should act.
type Notification struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

const NotificationKindStepPending = "step_pending"

// SlogNotifier is the default Notifier: it logs the notification. Real
// deployments plug in their own transport behind the Notifier interface.
type SlogNotifier struct{}

func (SlogNotifier) Notify(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "Notifying user", "userId", n.UserID, "kind", n.Kind, "message", n.Message)
	return nil
}
