package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if payload, ok := event.Payload.(map[string]interface{}); ok {
			for _, key := range []string{"run_id", "channel_id", "stage", "status"} {
				if v, ok := payload[key].(string); ok && v != "" {
					logEvent = logEvent.Str(key, v)
				}
			}
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeAll subscribes handler to every known event type
func SubscribeAll(eventService interfaces.EventService, handler interfaces.EventHandler) error {
	for _, eventType := range AllEventTypes {
		if err := eventService.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("failed to subscribe to event type %s: %w", eventType, err)
		}
	}
	return nil
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	if err := SubscribeAll(eventService, NewLoggerSubscriber(logger)); err != nil {
		return err
	}

	logger.Info().
		Int("event_type_count", len(AllEventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
