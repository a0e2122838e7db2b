package notify

import (
	"context"
	"log/slog"

	"focusd/internal/types"
)

// Event names on the notification channels.
const (
	EventScore        = "score"
	EventAlert        = "alert"
	EventIntervention = "intervention"
)

// Notifier fans notifications out to the WebSocket hub and, when configured,
// the webhook endpoint. It implements types.Notifier: every method is
// fire-and-forget and returns before slow consumers are serviced.
type Notifier struct {
	hub     *Hub
	webhook *WebhookClient
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. webhook may be nil (channel disabled).
func NewNotifier(hub *Hub, webhook *WebhookClient, logger *slog.Logger) *Notifier {
	return &Notifier{hub: hub, webhook: webhook, logger: logger}
}

// NotifyScore pushes a score snapshot to the dashboard. Scores are high
// volume and purely informational, so they skip the webhook channel.
func (n *Notifier) NotifyScore(_ context.Context, s types.ScoreSnapshot) {
	n.hub.Broadcast(EventScore, s)
}

// NotifyAlert pushes a fired alert to all channels.
func (n *Notifier) NotifyAlert(ctx context.Context, a types.Alert) {
	n.hub.Broadcast(EventAlert, a)
	n.post(ctx, EventAlert, a)
}

// NotifyIntervention pushes a fired intervention to all channels.
func (n *Notifier) NotifyIntervention(ctx context.Context, notice types.InterventionNotice) {
	n.hub.Broadcast(EventIntervention, notice)
	n.post(ctx, EventIntervention, notice)
}

// post delivers to the webhook on its own goroutine; a failed delivery is
// logged and dropped.
func (n *Notifier) post(ctx context.Context, event string, data any) {
	if n.webhook == nil {
		return
	}
	go func() {
		// Detach from the caller's context so an engine tick finishing does
		// not cancel an in-flight delivery.
		if err := n.webhook.Post(context.WithoutCancel(ctx), event, data); err != nil {
			n.logger.Warn("webhook notification dropped", "event", event, "error", err)
		}
	}()
}
