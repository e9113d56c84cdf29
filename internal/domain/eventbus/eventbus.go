// Package eventbus decouples recording sessions from journal bookkeeping:
// label changes and note lifecycle events fan out over topics instead of
// direct calls, so slow subscribers never block the sampling tick.
package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

var (
	instance evbus.Bus
	asyncBus *AsyncBus
	once     sync.Once
)

func ensure() {
	once.Do(func() {
		instance = evbus.New()
		asyncBus = NewAsyncBus(4)
		asyncBus.Start()
	})
}

// Get returns the shared synchronous bus.
func Get() evbus.Bus {
	ensure()
	return instance
}

// GetAsync returns the shared asynchronous bus.
func GetAsync() *AsyncBus {
	ensure()
	return asyncBus
}

// Publish delivers an event synchronously to all subscribers.
func Publish(topic string, args ...interface{}) {
	Get().Publish(topic, args...)
}

// PublishAsync queues an event for delivery by the worker pool.
func PublishAsync(topic string, args ...interface{}) {
	GetAsync().PublishAsync(topic, args...)
}

// Subscribe registers a synchronous handler for topic.
func Subscribe(topic string, fn interface{}) error {
	return Get().Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered handler.
func Unsubscribe(topic string, fn interface{}) error {
	return Get().Unsubscribe(topic, fn)
}

// Shutdown stops the async workers.
func Shutdown() {
	if asyncBus != nil {
		asyncBus.Stop()
	}
}
