package realtimesvc

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logsvc "github.com/trezcool/learnsmart/services/logger"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	aliceA, unsubA := hub.Subscribe("alice")
	aliceB, unsubB := hub.Subscribe("alice")
	bob, unsubBob := hub.Subscribe("bob")
	defer unsubBob()
	assert.Equal(t, 2, hub.Subscribers("alice"))

	require.NoError(t, hub.Publish(ctx, "alice", "notification", "hello"))
	assert.Equal(t, Event{Type: "notification", Data: "hello"}, receive(t, aliceA))
	assert.Equal(t, Event{Type: "notification", Data: "hello"}, receive(t, aliceB))
	select {
	case ev := <-bob:
		t.Fatalf("bob got %v", ev)
	default:
	}

	unsubA()
	unsubA() // idempotent
	_, open := <-aliceA
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers("alice"))

	unsubB()
	require.NoError(t, hub.Publish(ctx, "alice", "notification", "nobody listens"))
	require.NoError(t, hub.Publish(ctx, "carol", "notification", "no such user"))
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch, unsub := hub.Subscribe("alice")
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			hub.Broadcast("alice", Event{Type: "notification", Data: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a slow subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestHub_ConcurrentUnsubscribe(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		_, unsub := hub.Subscribe("alice")
		go func() {
			defer wg.Done()
			hub.Broadcast("alice", Event{Type: "notification"})
		}()
		go func() {
			defer wg.Done()
			unsub()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Subscribers("alice"))
	assert.Zero(t, hub.userCount())
}

func TestHub_ReleasesIdleUsers(t *testing.T) {
	hub := NewHub()
	_, unsubAlice1 := hub.Subscribe("alice")
	_, unsubAlice2 := hub.Subscribe("alice")
	_, unsubBob := hub.Subscribe("bob")
	assert.Equal(t, 2, hub.userCount())

	unsubAlice1()
	assert.Equal(t, 2, hub.userCount(), "alice still has a subscriber")
	unsubAlice2()
	unsubBob()
	unsubBob()
	assert.Zero(t, hub.userCount())

	// a new stream after the set was dropped still receives events
	ch, unsub := hub.Subscribe("alice")
	defer unsub()
	hub.Broadcast("alice", Event{Type: "notification", Data: "hi"})
	assert.Equal(t, "hi", receive(t, ch).Data)
}

func TestHub_SubscribeRacesUnsubscribe(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		_, unsub := hub.Subscribe("alice")
		wg.Add(2)
		var ch <-chan Event
		var unsubNew func()
		go func() {
			defer wg.Done()
			unsub()
		}()
		go func() {
			defer wg.Done()
			ch, unsubNew = hub.Subscribe("alice")
		}()
		wg.Wait()

		require.Equal(t, 1, hub.Subscribers("alice"), "iteration %d", i)
		hub.Broadcast("alice", Event{Type: "notification"})
		receive(t, ch)
		unsubNew()
	}
	assert.Zero(t, hub.userCount())
}

func TestRedisBridge(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// two instances sharing one channel
	hub1, hub2 := NewHub(), NewHub()
	bridge1 := NewRedisBridge(hub1, client, "test:notifications", logsvc.NewTestLogger())
	bridge2 := NewRedisBridge(hub2, client, "test:notifications", logsvc.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, b := range []*RedisBridge{bridge1, bridge2} {
		ready := make(chan struct{})
		go func(b *RedisBridge) { _ = b.Run(ctx, ready) }(b)
		select {
		case <-ready:
		case <-time.After(2 * time.Second):
			t.Fatal("bridge did not subscribe")
		}
	}

	events, unsub := hub2.Subscribe("alice")
	defer unsub()

	payload := map[string]string{"title": "New Quiz Question Available"}
	require.NoError(t, bridge1.Publish(ctx, "alice", "notification", payload))

	ev := receive(t, events)
	assert.Equal(t, "notification", ev.Type)
	raw, ok := ev.Data.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"New Quiz Question Available"}`, string(raw))
}
