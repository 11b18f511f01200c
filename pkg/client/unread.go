package client

import (
	"encoding/json"
	"sync"

	"github.com/murmurnet/murmur/internal/realtime"
)

// UnreadCounter tracks the unread notification badge for one UI region.
// Seed it with the server's count and let live events adjust it; any
// "unread count" event snaps it back to the authoritative value, which is
// how every tab converges after a bulk mark-read or clear.
type UnreadCounter struct {
	mu    sync.Mutex
	count int
}

// NewUnreadCounter returns a counter seeded with the server-side count.
func NewUnreadCounter(seed int) *UnreadCounter {
	return &UnreadCounter{count: seed}
}

// Attach subscribes the counter to a connection's event stream.
func (u *UnreadCounter) Attach(c *Client) {
	c.On(realtime.EventNotificationReceived, func(json.RawMessage) {
		u.Increment()
	})
	c.On(realtime.EventUnreadCount, func(data json.RawMessage) {
		var payload realtime.UnreadCountData
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		u.Set(payload.Count)
	})
}

// Increment bumps the badge by one; the optimistic path for a live
// notification.
func (u *UnreadCounter) Increment() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.count++
}

// Set replaces the badge with an authoritative value.
func (u *UnreadCounter) Set(n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.count = n
}

// Count returns the current badge value.
func (u *UnreadCounter) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}
