package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	wrote  chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{wrote: make(chan struct{}, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	f.writes = append(f.writes, data)
	f.mu.Unlock()
	select {
	case f.wrote <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
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
	t.Fatal("condition not met before deadline")
}

func TestHubBroadcastFiltersBySubject(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test")
	go h.Run(ctx)

	all := newFakeConn()
	alice := newFakeConn()
	go NewClient(h, all, "").Run()
	go NewClient(h, alice, "alice").Run()
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	h.Broadcast(NewJSONMessage("bob", []byte(`"bob"`)))
	h.Broadcast(NewJSONMessage("alice", []byte(`"alice"`)))
	if err := h.BroadcastJSON("", "everyone"); err != nil {
		t.Fatalf("BroadcastJSON error: %v", err)
	}

	waitFor(t, func() bool { return len(all.Writes()) == 3 && len(alice.Writes()) == 2 })

	got := alice.Writes()
	if got[0] != `"alice"` || got[1] != `"everyone"` {
		t.Errorf("alice received %v", got)
	}
}

func TestHubUnregisterOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test")
	go h.Run(ctx)

	conn := newFakeConn()
	go NewClient(h, conn, "").Run()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHubStopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test")
	go h.Run(ctx)
	waitFor(t, h.IsRunning)

	conn := newFakeConn()
	go NewClient(h, conn, "").Run()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	waitFor(t, func() bool { return !h.IsRunning() })

	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("client connection not closed after hub stop")
	}

	// Late clients are created closed instead of blocking.
	late := NewClient(h, newFakeConn(), "")
	if _, ok := <-late.send; ok {
		t.Error("late client send channel should be closed")
	}
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	h := New("test") // Run not started, queue fills up

	for i := 0; i < cap(h.broadcast)+10; i++ {
		h.Broadcast(NewJSONMessage("", []byte("x")))
	}
	if h.Dropped() != 10 {
		t.Errorf("Dropped = %d, want 10", h.Dropped())
	}
}
