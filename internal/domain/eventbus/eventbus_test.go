package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestSyncPublishSubscribe(t *testing.T) {
	bus := Get()

	var mu sync.Mutex
	var got []EmotionEventData
	handler := func(data EmotionEventData) {
		mu.Lock()
		got = append(got, data)
		mu.Unlock()
	}
	if err := bus.Subscribe(EventEmotionChanged, handler); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	t.Cleanup(func() { _ = bus.Unsubscribe(EventEmotionChanged, handler) })

	Publish(EventEmotionChanged, EmotionEventData{SessionID: "s1", Label: "happy", Frames: 12})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Label != "happy" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestAsyncBusDelivers(t *testing.T) {
	bus := NewAsyncBus(2)
	bus.Start()
	t.Cleanup(bus.Stop)

	done := make(chan NoteEventData, 1)
	if err := bus.SubscribeAsync(EventNoteCreated, func(data NoteEventData) {
		done <- data
	}); err != nil {
		t.Fatalf("SubscribeAsync error: %v", err)
	}

	bus.PublishAsync(EventNoteCreated, NoteEventData{NoteUID: "n1", Emotion: "sad"})

	select {
	case data := <-done:
		if data.NoteUID != "n1" {
			t.Fatalf("unexpected event: %+v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async event not delivered")
	}
}

func TestAsyncBusSurvivesPanickingSubscriber(t *testing.T) {
	bus := NewAsyncBus(1)
	bus.Start()
	t.Cleanup(bus.Stop)

	if err := bus.SubscribeAsync(EventSessionAborted, func(SessionEventData) {
		panic("subscriber bug")
	}); err != nil {
		t.Fatalf("SubscribeAsync error: %v", err)
	}
	bus.PublishAsync(EventSessionAborted, SessionEventData{SessionID: "s"})

	done := make(chan struct{}, 1)
	if err := bus.SubscribeAsync(EventSessionFinished, func(SessionEventData) {
		done <- struct{}{}
	}); err != nil {
		t.Fatalf("SubscribeAsync error: %v", err)
	}
	bus.PublishAsync(EventSessionFinished, SessionEventData{SessionID: "s"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after subscriber panic")
	}
}
