// Package notify delivers user notifications produced by the lifecycle
// manager. The webhook notifier posts signed payloads to a configured
// endpoint; the log notifier is the fallback when no endpoint is set.
package notify

import (
	"context"
	"log"

	"github.com/djlord-it/eventcron/internal/domain"
)

// LogNotifier writes notifications to the process log. It is used when
// no webhook endpoint is configured, so the notification path stays
// observable in development and single-node deployments.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, userID string, notification domain.Notification) error {
	log.Printf("notify: user=%s type=%s", userID, notification.Type)
	return nil
}
