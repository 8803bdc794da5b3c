// Package notify fans approval lifecycle events out to delivery channels.
// Channel failures are logged and never block the control path.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy/approval"
)

// EventKind identifies the lifecycle moment an event describes.
type EventKind string

const (
	EventApprovalNeeded EventKind = "approval_needed"
	EventEscalation     EventKind = "escalation"
)

// Event is the channel-facing summary of an approval request.
type Event struct {
	Kind        EventKind `json:"kind"`
	RequestID   string    `json:"request_id"`
	ActionID    string    `json:"action_id"`
	Engine      string    `json:"engine"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Urgency     string    `json:"urgency"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Channel delivers events somewhere humans look.
type Channel interface {
	Name() string
	Send(ctx context.Context, event *Event) error
}

// Dispatcher implements approval.Notifier over a set of channels.
type Dispatcher struct {
	mu       sync.RWMutex
	channels []Channel
	logger   *slog.Logger
}

var _ approval.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		logger:   slog.Default().With("component", "notify"),
	}
}

// Register adds a channel after construction.
func (d *Dispatcher) Register(channel Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, channel)
}

// ApprovalNeeded implements approval.Notifier.
func (d *Dispatcher) ApprovalNeeded(ctx context.Context, request *approval.Request) {
	d.dispatch(ctx, eventFrom(EventApprovalNeeded, request))
}

// Escalation implements approval.Notifier.
func (d *Dispatcher) Escalation(ctx context.Context, request *approval.Request) {
	d.dispatch(ctx, eventFrom(EventEscalation, request))
}

func (d *Dispatcher) dispatch(ctx context.Context, event *Event) {
	d.mu.RLock()
	channels := make([]Channel, len(d.channels))
	copy(channels, d.channels)
	d.mu.RUnlock()

	for _, channel := range channels {
		if err := channel.Send(ctx, event); err != nil {
			d.logger.Error("notification delivery failed",
				"channel", channel.Name(),
				"kind", string(event.Kind),
				"request_id", event.RequestID,
				"error", err,
			)
		}
	}
}

func eventFrom(kind EventKind, request *approval.Request) *Event {
	return &Event{
		Kind:        kind,
		RequestID:   request.ID,
		ActionID:    request.Decision.ActionID,
		Engine:      string(request.Decision.Action.Engine),
		Description: request.Decision.Action.Description,
		Priority:    request.Priority,
		Urgency:     string(request.Urgency),
		ExpiresAt:   request.ExpiresAt,
		CreatedAt:   request.CreatedAt,
	}
}
