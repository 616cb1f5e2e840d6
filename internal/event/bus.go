package event

import "github.com/Iron-Ham/imecore/internal/logging"

// DefaultCapacity is the per-subscription buffer size of both bus channels.
const DefaultCapacity = 15

// BusConfig sizes the bus channels.
type BusConfig struct {
	NotificationCapacity int
	ResponseCapacity     int
}

// DefaultBusConfig returns the default bus configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		NotificationCapacity: DefaultCapacity,
		ResponseCapacity:     DefaultCapacity,
	}
}

// Bus carries the two engine event streams. Notifications keep the newest
// entries when a subscriber falls behind; Responses keep the oldest and drop
// new ones until the subscriber catches up.
type Bus struct {
	Notifications *Channel[Notification]
	Responses     *Channel[Response]
}

// NewBus creates a Bus. Non-positive capacities fall back to DefaultCapacity.
func NewBus(config BusConfig, logger *logging.Logger) *Bus {
	if config.NotificationCapacity <= 0 {
		config.NotificationCapacity = DefaultCapacity
	}
	if config.ResponseCapacity <= 0 {
		config.ResponseCapacity = DefaultCapacity
	}
	return &Bus{
		Notifications: NewChannel[Notification]("notifications", config.NotificationCapacity, DropOldest, logger),
		Responses:     NewChannel[Response]("responses", config.ResponseCapacity, DropLatest, logger),
	}
}

// PublishNotification publishes n on the Notifications channel.
func (b *Bus) PublishNotification(n Notification) bool {
	return b.Notifications.Publish(n)
}

// PublishResponse publishes r on the Responses channel.
func (b *Bus) PublishResponse(r Response) bool {
	return b.Responses.Publish(r)
}
