package realtimesvc

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Event is one server-sent event. Type becomes the SSE "event:" name.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type subscriberSet struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	dead bool // removed from the hub; Subscribe must load a fresh set
}

// Hub fans events out to the live subscribers of each user. It is process-local.
type Hub struct {
	users sync.Map // user id -> *subscriberSet
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a subscriber for userID. The returned func unsubscribes and closes the channel;
// it must be called once the consumer goes away.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	var set *subscriberSet
	for {
		v, _ := h.users.LoadOrStore(userID, &subscriberSet{subs: make(map[chan Event]struct{})})
		set = v.(*subscriberSet)
		set.mu.Lock()
		if !set.dead {
			break
		}
		set.mu.Unlock()
	}
	set.subs[ch] = struct{}{}
	set.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			set.mu.Lock()
			delete(set.subs, ch)
			if len(set.subs) == 0 {
				set.dead = true
				h.users.CompareAndDelete(userID, set)
			}
			set.mu.Unlock()
			close(ch)
		})
	}
}

// userCount returns how many users have a subscriber set.
func (h *Hub) userCount() int {
	var n int
	h.users.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Broadcast delivers ev to every subscriber of userID. Subscribers with a full buffer miss the event.
func (h *Hub) Broadcast(userID string, ev Event) {
	v, ok := h.users.Load(userID)
	if !ok {
		return
	}
	set := v.(*subscriberSet)
	set.mu.RLock()
	defer set.mu.RUnlock()
	for ch := range set.subs {
		select {
		case ch <- ev:
		default:
			// slow subscriber
		}
	}
}

// Subscribers returns how many live subscribers userID has.
func (h *Hub) Subscribers(userID string) int {
	v, ok := h.users.Load(userID)
	if !ok {
		return 0
	}
	set := v.(*subscriberSet)
	set.mu.RLock()
	defer set.mu.RUnlock()
	return len(set.subs)
}

// Publish implements notification.Publisher on the local hub.
func (h *Hub) Publish(_ context.Context, userID, event string, payload interface{}) error {
	if userID == "" || event == "" {
		return nil
	}
	h.Broadcast(userID, Event{Type: event, Data: payload})
	return nil
}
