package messaging

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natija-hub/results-engine/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return NewInMemoryEventBus(cfg)
}

func TestInMemoryBusDeliversToTypedSubscriber(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var got shared.Event
	err := bus.Subscribe(shared.EventDataRefreshed, shared.EventHandlerFunc(func(e shared.Event) error {
		got = e
		return nil
	}))
	require.NoError(t, err)

	event := shared.NewDataRefreshedEvent("admin", 42)
	require.NoError(t, bus.Publish(event))

	require.NotNil(t, got)
	assert.Equal(t, shared.EventDataRefreshed, got.EventType())
	assert.Equal(t, 42, got.Payload()["record_count"])
}

func TestInMemoryBusSkipsOtherTypes(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var calls int
	_ = bus.Subscribe(shared.EventIndexRebuilt, shared.EventHandlerFunc(func(shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewDataRefreshedEvent("import", -1)))
	assert.Zero(t, calls)
}

func TestInMemoryBusSubscribeAll(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var calls int
	_ = bus.SubscribeAll(shared.EventHandlerFunc(func(shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewDataRefreshedEvent("import", -1)))
	require.NoError(t, bus.Publish(shared.NewIndexRebuiltEvent(1, 10, time.Millisecond)))
	assert.Equal(t, 2, calls)
}

func TestInMemoryBusAsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var calls atomic.Int64
	var wg sync.WaitGroup
	wg.Add(3)
	_ = bus.Subscribe(shared.EventDataRefreshed, shared.EventHandlerFunc(func(shared.Event) error {
		calls.Add(1)
		wg.Done()
		return nil
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(shared.NewDataRefreshedEvent("import", i)))
	}

	wg.Wait()
	require.NoError(t, bus.Close())
	assert.Equal(t, int64(3), calls.Load())
}

func TestInMemoryBusCloseWaitsForAsyncPublishes(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var inFlight atomic.Int64
	var completed atomic.Int64
	_ = bus.Subscribe(shared.EventDataRefreshed, shared.EventHandlerFunc(func(shared.Event) error {
		inFlight.Add(1)
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		completed.Add(1)
		return nil
	}))

	// Close immediately after a burst of publishes. Every accepted publish
	// is registered with the wait group before Publish returns, so Close
	// must not return while a handler goroutine is still running.
	for i := 0; i < 50; i++ {
		require.NoError(t, bus.Publish(shared.NewDataRefreshedEvent("import", i)))
	}
	require.NoError(t, bus.Close())

	assert.Zero(t, inFlight.Load())
	settled := completed.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, settled, completed.Load())
}

func TestInMemoryBusRejectsAfterClose(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewDataRefreshedEvent("import", 0)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventDataRefreshed, shared.EventHandlerFunc(func(shared.Event) error {
		return nil
	})), ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}

func TestInMemoryBusNilArguments(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventDataRefreshed, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}
