package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/imecore/internal/engine"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.kind" (e.g., "notification.schema", "response").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

// Notification is an engine-initiated message. The concrete type is one of
// SchemaNotification, OptionNotification, DeployNotification or
// UnknownNotification.
type Notification interface {
	Event
	// MessageType is the raw engine message type ("schema", "option", ...).
	MessageType() string
	// MessageValue is the raw engine message value.
	MessageValue() string
}

// SchemaNotification reports that the current schema changed.
type SchemaNotification struct {
	baseEvent
	Schema engine.SchemaItem
}

func (n SchemaNotification) MessageType() string { return "schema" }
func (n SchemaNotification) MessageValue() string {
	return n.Schema.ID + "/" + n.Schema.Name
}
func (n SchemaNotification) String() string {
	return fmt.Sprintf("SchemaNotification(id=%s, name=%s)", n.Schema.ID, n.Schema.Name)
}

// OptionNotification reports that a runtime option was switched.
type OptionNotification struct {
	baseEvent
	Option string
	Value  bool
}

func (n OptionNotification) MessageType() string { return "option" }
func (n OptionNotification) MessageValue() string {
	if n.Value {
		return n.Option
	}
	return "!" + n.Option
}
func (n OptionNotification) String() string {
	return fmt.Sprintf("OptionNotification(option=%s, value=%t)", n.Option, n.Value)
}

// DeployNotification reports deployment progress ("start", "success", "failure").
type DeployNotification struct {
	baseEvent
	State string
}

func (n DeployNotification) MessageType() string  { return "deploy" }
func (n DeployNotification) MessageValue() string { return n.State }
func (n DeployNotification) String() string {
	return fmt.Sprintf("DeployNotification(state=%s)", n.State)
}

// UnknownNotification carries any message type imecore does not interpret.
type UnknownNotification struct {
	baseEvent
	Type  string
	Value string
}

func (n UnknownNotification) MessageType() string  { return n.Type }
func (n UnknownNotification) MessageValue() string { return n.Value }
func (n UnknownNotification) String() string {
	return fmt.Sprintf("UnknownNotification(type=%s, value=%s)", n.Type, n.Value)
}

// ParseNotification converts a raw engine message into a Notification.
//
//   - "schema": value is "id/name"; a value without "/" is all id.
//   - "option": value is "name" (switched on) or "!name" (switched off).
//   - "deploy": value is the deploy state.
//   - anything else becomes an UnknownNotification.
func ParseNotification(messageType, messageValue string) Notification {
	switch messageType {
	case "schema":
		id, name, _ := strings.Cut(messageValue, "/")
		return SchemaNotification{
			baseEvent: newBaseEvent("notification.schema"),
			Schema:    engine.SchemaItem{ID: id, Name: name},
		}
	case "option":
		return OptionNotification{
			baseEvent: newBaseEvent("notification.option"),
			Option:    strings.TrimPrefix(messageValue, "!"),
			Value:     !strings.HasPrefix(messageValue, "!"),
		}
	case "deploy":
		return DeployNotification{
			baseEvent: newBaseEvent("notification.deploy"),
			State:     messageValue,
		}
	default:
		return UnknownNotification{
			baseEvent: newBaseEvent("notification.unknown"),
			Type:      messageType,
			Value:     messageValue,
		}
	}
}

// -----------------------------------------------------------------------------
// Responses
// -----------------------------------------------------------------------------

// Response bundles the engine state observed right after an operation that
// may have changed it. Each field is nil when the engine reported nothing of
// that kind.
type Response struct {
	baseEvent
	Commit  *engine.Commit
	Context *engine.Context
	Status  *engine.Status
}

// NewResponse creates a Response.
func NewResponse(commit *engine.Commit, context *engine.Context, status *engine.Status) Response {
	return Response{
		baseEvent: newBaseEvent("response"),
		Commit:    commit,
		Context:   context,
		Status:    status,
	}
}
