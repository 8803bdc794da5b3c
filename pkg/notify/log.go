package notify

import (
	"context"
	"log/slog"
)

// LogChannel writes events to the structured log. It is the default channel
// and the fallback when no external channel is configured.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a log-backed channel.
func NewLogChannel() *LogChannel {
	return &LogChannel{logger: slog.Default().With("component", "notify.log")}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return "log" }

// Send implements Channel.
func (c *LogChannel) Send(_ context.Context, event *Event) error {
	level := slog.LevelInfo
	if event.Kind == EventEscalation {
		level = slog.LevelWarn
	}

	c.logger.Log(context.Background(), level, "approval notification",
		"kind", string(event.Kind),
		"request_id", event.RequestID,
		"action_id", event.ActionID,
		"engine", event.Engine,
		"priority", event.Priority,
		"urgency", event.Urgency,
		"description", event.Description,
		"expires_at", event.ExpiresAt,
	)
	return nil
}
