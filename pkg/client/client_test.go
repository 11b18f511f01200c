package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurnet/murmur/internal/realtime"
)

// fakeServer upgrades connections, answers the setup handshake, and hands
// each accepted connection to the test for scripted pushes.
type fakeServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		var event realtime.Event
		if err := conn.ReadJSON(&event); err != nil || event.Type != realtime.EventSetup {
			conn.Close()
			return
		}
		ack, _ := realtime.NewEvent(realtime.EventConnected, nil)
		if err := conn.WriteJSON(ack); err != nil {
			conn.Close()
			return
		}
		fs.conns <- conn
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *fakeServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fs.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func (fs *fakeServer) push(t *testing.T, conn *websocket.Conn, eventType realtime.EventType, data any) {
	t.Helper()
	event, err := realtime.NewEvent(eventType, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(event))
}

func dialTest(t *testing.T, fs *fakeServer) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, fs.url(), uuid.New(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestDialPerformsSetupHandshake(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)
	fs.accept(t)

	select {
	case <-c.Done():
		t.Fatal("connection dropped immediately")
	default:
	}
}

func TestJoinChatEmitsChatRef(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)
	conn := fs.accept(t)

	chatID := uuid.New()
	require.NoError(t, c.JoinChat(chatID))

	var event realtime.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, realtime.EventJoinChat, event.Type)

	var ref realtime.ChatRef
	require.NoError(t, event.ParseData(&ref))
	assert.Equal(t, chatID, ref.ChatID)
}

func TestUnreadCountersConvergeAcrossTabs(t *testing.T) {
	fs := newFakeServer(t)

	tab1 := dialTest(t, fs)
	conn1 := fs.accept(t)
	tab2 := dialTest(t, fs)
	conn2 := fs.accept(t)

	counter1 := NewUnreadCounter(0)
	counter1.Attach(tab1)
	counter2 := NewUnreadCounter(0)
	counter2.Attach(tab2)

	// Three live notifications bump both tabs optimistically.
	for range [3]struct{}{} {
		fs.push(t, conn1, realtime.EventNotificationReceived, map[string]string{"message": "ping"})
		fs.push(t, conn2, realtime.EventNotificationReceived, map[string]string{"message": "ping"})
	}
	waitFor(t, func() bool { return counter1.Count() == 3 && counter2.Count() == 3 })

	// Mark-read on one tab: the server pushes the authoritative zero to
	// every session and both badges converge.
	fs.push(t, conn1, realtime.EventUnreadCount, realtime.UnreadCountData{Count: 0})
	fs.push(t, conn2, realtime.EventUnreadCount, realtime.UnreadCountData{Count: 0})
	waitFor(t, func() bool { return counter1.Count() == 0 && counter2.Count() == 0 })
}

func TestUnreadCountSnapsOverDrift(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)
	conn := fs.accept(t)

	counter := NewUnreadCounter(7) // seeded from a stale REST read
	counter.Attach(c)

	fs.push(t, conn, realtime.EventUnreadCount, realtime.UnreadCountData{Count: 2})
	waitFor(t, func() bool { return counter.Count() == 2 })
}

func TestDoneClosesOnDisconnect(t *testing.T) {
	fs := newFakeServer(t)
	c := dialTest(t, fs)
	conn := fs.accept(t)

	conn.Close()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed after the server hung up")
	}
}
