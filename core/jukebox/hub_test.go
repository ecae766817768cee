package jukebox

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan []byte) FeedMessage {
	t.Helper()
	select {
	case data := <-ch:
		var msg FeedMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return FeedMessage{}
	}
}

func TestEventHubRoutesByTable(t *testing.T) {
	hub := NewEventHub()
	go hub.Run()
	defer hub.Stop()

	tableA := &Client{Hub: hub, Send: make(chan []byte, 8), TableID: "a"}
	global := &Client{Hub: hub, Send: make(chan []byte, 8)}
	hub.Register(tableA)
	hub.Register(global)

	ctx := context.Background()
	hub.Emit(ctx, &Event{ID: "1", Type: EventSkipVoted, TableID: "b"})
	hub.Emit(ctx, &Event{ID: "2", Type: EventSkipVoted, TableID: "a"})

	assert.Equal(t, "1", receive(t, global.Send).Event.ID)
	assert.Equal(t, "2", receive(t, global.Send).Event.ID)
	msg := receive(t, tableA.Send)
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "2", msg.Event.ID)

	hub.Unregister(tableA)
	require.Eventually(t, func() bool { return hub.ClientCount("a") == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-tableA.Send
	assert.False(t, open)
}

func TestMultiEmitterFansOut(t *testing.T) {
	a, b := &recordingEmitter{}, &recordingEmitter{}
	MultiEmitter{a, nil, b}.Emit(context.Background(), &Event{Type: EventTrackMinted})
	assert.Len(t, a.ofType(EventTrackMinted), 1)
	assert.Len(t, b.ofType(EventTrackMinted), 1)
}

func TestKeyedMutexSeparatesKeys(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock("a")

	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by a")
	}

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("c")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	unlockA()
	assert.Equal(t, 20, counter)
	assert.Zero(t, k.size())
}
