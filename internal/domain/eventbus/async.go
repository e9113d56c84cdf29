package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

const asyncQueueSize = 256

// AsyncBus wraps an EventBus with a bounded worker pool so publishers
// never run subscriber code on their own goroutine.
type AsyncBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

func NewAsyncBus(workerNum int) *AsyncBus {
	if workerNum <= 0 {
		workerNum = 4
	}
	return &AsyncBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, asyncQueueSize),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the delivery workers.
func (ab *AsyncBus) Start() {
	for i := 0; i < ab.workerNum; i++ {
		ab.wg.Add(1)
		go ab.worker()
	}
}

// Stop shuts the workers down and waits for them to drain.
func (ab *AsyncBus) Stop() {
	ab.stopOnce.Do(func() {
		close(ab.stopChan)
	})
	ab.wg.Wait()
}

func (ab *AsyncBus) worker() {
	defer ab.wg.Done()
	for {
		select {
		case <-ab.stopChan:
			return
		case event := <-ab.workChan:
			func() {
				defer func() {
					// A panicking subscriber must not take the worker down.
					_ = recover()
				}()
				ab.bus.Publish(event.topic, event.args...)
			}()
		}
	}
}

// SubscribeAsync registers a handler invoked from the worker pool.
func (ab *AsyncBus) SubscribeAsync(topic string, fn interface{}) error {
	return ab.bus.Subscribe(topic, fn)
}

// PublishAsync queues the event; it is dropped when the queue is full
// rather than blocking the publisher.
func (ab *AsyncBus) PublishAsync(topic string, args ...interface{}) {
	select {
	case ab.workChan <- asyncEvent{topic: topic, args: args}:
	default:
	}
}
