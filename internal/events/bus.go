// Package events provides the typed publish/subscribe fan-out connecting the
// reliability core to its consumers (UI layer, connection state machines).
// It replaces GUI signal wiring: each topic carries one payload type and
// fans out to every subscriber without blocking the publisher.
package events

import (
	"sync"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
)

// ThresholdCrossing is the payload of threshold_reached.
type ThresholdCrossing struct {
	ConnectionID string  `json:"connection_id"`
	Percentage   float64 `json:"percentage"`
}

// LimitExceeded is the payload of limit_exceeded.
type LimitExceeded struct {
	ConnectionID string `json:"connection_id"`
}

// topic is a single fan-out channel group. Publish never blocks; a
// subscriber that falls behind its buffer loses the oldest-pending event
// for itself only.
type topic[T any] struct {
	mu   sync.RWMutex
	subs []chan T
}

func (t *topic[T]) subscribe(buffer int) <-chan T {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan T, buffer)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

func (t *topic[T]) publish(v T) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
			// Slow subscriber: drop its oldest pending event to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Bus carries every event the core emits. One Bus instance is shared by all
// components of a process; construct it once during bootstrap.
type Bus struct {
	errorOccurred    topic[domain.NetworkError]
	userNotification topic[domain.NetworkError]
	availability     topic[bool]
	usageUpdated     topic[domain.UsageSample]
	thresholdReached topic[ThresholdCrossing]
	limitExceeded    topic[LimitExceeded]
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// PublishError emits error_occurred.
func (b *Bus) PublishError(e domain.NetworkError) { b.errorOccurred.publish(e) }

// PublishUserNotification emits user_notification_required.
func (b *Bus) PublishUserNotification(e domain.NetworkError) { b.userNotification.publish(e) }

// PublishAvailability emits availability_changed.
func (b *Bus) PublishAvailability(available bool) { b.availability.publish(available) }

// PublishUsage emits usage_updated.
func (b *Bus) PublishUsage(s domain.UsageSample) { b.usageUpdated.publish(s) }

// PublishThreshold emits threshold_reached.
func (b *Bus) PublishThreshold(c ThresholdCrossing) { b.thresholdReached.publish(c) }

// PublishLimitExceeded emits limit_exceeded.
func (b *Bus) PublishLimitExceeded(l LimitExceeded) { b.limitExceeded.publish(l) }

// SubscribeErrors returns a channel receiving every error_occurred event.
func (b *Bus) SubscribeErrors(buffer int) <-chan domain.NetworkError {
	return b.errorOccurred.subscribe(buffer)
}

// SubscribeUserNotifications returns a channel receiving
// user_notification_required events.
func (b *Bus) SubscribeUserNotifications(buffer int) <-chan domain.NetworkError {
	return b.userNotification.subscribe(buffer)
}

// SubscribeAvailability returns a channel receiving availability_changed
// events.
func (b *Bus) SubscribeAvailability(buffer int) <-chan bool {
	return b.availability.subscribe(buffer)
}

// SubscribeUsage returns a channel receiving usage_updated events.
func (b *Bus) SubscribeUsage(buffer int) <-chan domain.UsageSample {
	return b.usageUpdated.subscribe(buffer)
}

// SubscribeThresholds returns a channel receiving threshold_reached events.
func (b *Bus) SubscribeThresholds(buffer int) <-chan ThresholdCrossing {
	return b.thresholdReached.subscribe(buffer)
}

// SubscribeLimitExceeded returns a channel receiving limit_exceeded events.
func (b *Bus) SubscribeLimitExceeded(buffer int) <-chan LimitExceeded {
	return b.limitExceeded.subscribe(buffer)
}
