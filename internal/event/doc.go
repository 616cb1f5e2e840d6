// Package event fans out engine events to independent consumers.
//
// # Main Types
//
//   - [Channel]: a generic broadcast channel with bounded per-subscriber buffers
//   - [Subscription]: a pull-based view of a Channel
//   - [Listener]: a push callback registered on a Channel
//   - [Bus]: the two channels imecore publishes on
//
// # Event Categories
//
// Notifications are engine-initiated and parsed by [ParseNotification]:
//   - [SchemaNotification]: the current schema changed
//   - [OptionNotification]: a runtime option was switched
//   - [DeployNotification]: deployment progress
//   - [UnknownNotification]: anything else
//
// A [Response] bundles the commit, context and status observed after each
// engine operation that can change them.
//
// # Overflow
//
// Each subscription owns a ring buffer of the channel's capacity (15 by
// default). When it is full, the channel's [Overflow] policy decides:
// Notifications use [DropOldest], Responses use [DropLatest]. Dropping is
// silent apart from [Subscription.Dropped] and the Publish return value.
//
// # Thread Safety
//
// All types are safe for concurrent use. Publish snapshots listeners and
// subscriptions before delivering, so a listener may add or remove listeners
// (including itself) while being called. Listeners run synchronously on the
// publishing goroutine, which for engine events is the dispatch worker: they
// must not block, and must not call back into the engine synchronously. A
// panicking listener is recovered and logged.
//
// # Basic Usage
//
//	bus := event.NewBus(event.DefaultBusConfig(), logger)
//
//	sub := bus.Responses.Subscribe()
//	defer sub.Close()
//	for {
//	    r, err := sub.Next(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    if r.Commit != nil {
//	        fmt.Println(r.Commit.Text)
//	    }
//	}
package event
