package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/foodshop/pkg/logging"
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// publish is best-effort: it runs after the state change has committed and
// only logs failures.
func publish(ctx context.Context, pub EventPublisher, topic string, event map[string]any) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	event["at"] = time.Now().UTC()
	key := fmt.Sprint(event["user_id"])
	if err := pub.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("publish_event_error", "topic", topic, "type", event["type"], "error", err)
	}
}
