package kizuna

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type TestEvent struct {
	Value int
}

type OtherEvent struct {
	Name string
}

func TestEventBusSubscribeAndPublish(t *testing.T) {
	bus := &EventBus{}
	received := 0
	Subscribe(bus, func(e TestEvent) {
		received += e.Value
	})
	Subscribe(bus, func(e TestEvent) {
		received += e.Value * 2
	})
	Publish(bus, TestEvent{Value: 1})
	assert.Equal(t, 3, received)
	Publish(bus, TestEvent{Value: 2})
	assert.Equal(t, 3+6, received)
	assert.Equal(t, 2, HandlerCount[TestEvent](bus))
}

func TestEventBusMultipleTypes(t *testing.T) {
	bus := &EventBus{}
	received1 := 0
	received2 := ""
	Subscribe(bus, func(e TestEvent) {
		received1 += e.Value
	})
	Subscribe(bus, func(e OtherEvent) {
		received2 += e.Name
	})
	Publish(bus, TestEvent{Value: 42})
	Publish(bus, OtherEvent{Name: "scene"})
	assert.Equal(t, 42, received1)
	assert.Equal(t, "scene", received2)
}

func TestEventBusNoHandlers(t *testing.T) {
	bus := &EventBus{}
	assert.NotPanics(t, func() { Publish(bus, TestEvent{Value: 42}) })
	assert.Equal(t, 0, HandlerCount[TestEvent](bus))
	assert.NotPanics(t, func() { Publish[TestEvent](nil, TestEvent{}) })
}

func TestEventBusSubscribeFromHandler(t *testing.T) {
	bus := &EventBus{}
	calls := 0
	Subscribe(bus, func(TestEvent) {
		calls++
		Subscribe(bus, func(TestEvent) { calls += 10 })
	})
	Publish(bus, TestEvent{})
	assert.Equal(t, 1, calls)
	Publish(bus, TestEvent{})
	assert.Equal(t, 1+1+10, calls)
}

func TestEventBusConcurrent(t *testing.T) {
	bus := &EventBus{}
	var received atomic.Int64
	Subscribe(bus, func(e TestEvent) { received.Add(int64(e.Value)) })

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				Publish(bus, TestEvent{Value: 1})
			}
		}()
		go func() {
			defer wg.Done()
			Subscribe(bus, func(OtherEvent) {})
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 800, received.Load())
	assert.Equal(t, 8, HandlerCount[OtherEvent](bus))
}
