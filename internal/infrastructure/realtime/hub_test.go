package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	written  chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{written: make(chan struct{}, 16)}
}

func (f *fakeSocket) SetWriteDeadline(time.Time) error          { return nil }
func (f *fakeSocket) SetReadDeadline(time.Time) error           { return nil }
func (f *fakeSocket) SetReadLimit(int64)                        {}
func (f *fakeSocket) SetPongHandler(func(string) error)         {}
func (f *fakeSocket) ReadMessage() (int, []byte, error)         { return 0, nil, errors.New("eof") }
func (f *fakeSocket) WriteControl(int, []byte, time.Time) error { return nil }

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	f.mu.Lock()
	f.messages = append(f.messages, data)
	f.mu.Unlock()
	f.written <- struct{}{}
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func waitWrite(t *testing.T, s *fakeSocket) {
	t.Helper()
	select {
	case <-s.written:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write")
	}
}

func TestHub_BroadcastOrganizationIsScoped(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	a, b, other := newFakeSocket(), newFakeSocket(), newFakeSocket()
	hub.Attach(NewConnection("org-1", "user-1", a))
	hub.Attach(NewConnection("org-1", "user-2", b))
	hub.Attach(NewConnection("org-2", "user-3", other))

	delivered := hub.BroadcastOrganization("org-1", Encode("message.created", map[string]string{"id": "m1"}))
	assert.Equal(t, 2, delivered)

	waitWrite(t, a)
	waitWrite(t, b)
	other.mu.Lock()
	assert.Empty(t, other.messages)
	other.mu.Unlock()

	a.mu.Lock()
	require.Len(t, a.messages, 1)
	assert.JSONEq(t, `{"type":"message.created","data":{"id":"m1"}}`, string(a.messages[0]))
	a.mu.Unlock()
}

func TestHub_DetachAndNotifyUser(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	s1, s2 := newFakeSocket(), newFakeSocket()
	c1 := NewConnection("org-1", "user-1", s1)
	c2 := NewConnection("org-1", "user-2", s2)
	hub.Attach(c1)
	hub.Attach(c2)
	assert.Equal(t, 2, hub.Count())

	assert.Equal(t, 1, hub.NotifyUser("org-1", "user-2", []byte(`{}`)))
	waitWrite(t, s2)

	hub.Detach(c2)
	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, 0, hub.NotifyUser("org-1", "user-2", []byte(`{}`)))
	assert.Equal(t, 0, hub.BroadcastOrganization("org-9", []byte(`{}`)))
}

func TestConnection_ReadLoopClosesOnError(t *testing.T) {
	s := newFakeSocket()
	c := NewConnection("org-1", "user-1", s)
	c.ReadLoop()

	select {
	case <-c.Done():
	default:
		t.Fatal("connection should be closed")
	}
	assert.Error(t, c.Send([]byte("x")))
	s.mu.Lock()
	assert.True(t, s.closed)
	s.mu.Unlock()
}
