package hub

import (
	"testing"
	"time"
)

// attach registers a connectionless client, as NewClient would.
func attach(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Message, buffer)}
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept registration")
	}
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func recv(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}, false
}

func TestHub_Broadcast(t *testing.T) {
	h := New("reports")
	go h.Run()
	defer h.Stop()

	a := attach(t, h, 4)
	b := attach(t, h, 4)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]string{"summary": "happy"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	for _, c := range []*Client{a, b} {
		m, ok := recv(t, c)
		if !ok || m.Binary() || string(m.Data) != `{"summary":"happy"}` {
			t.Errorf("got %+v %v", m, ok)
		}
	}

	h.BroadcastBinary([]byte{0xFF, 0xD8})
	if m, _ := recv(t, a); !m.Binary() || len(m.Data) != 2 {
		t.Errorf("binary: got %+v", m)
	}
}

func TestHub_Unregister(t *testing.T) {
	h := New("camera")
	go h.Run()
	defer h.Stop()

	c := attach(t, h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.unregister <- c
	waitFor(t, func() bool { return h.ClientCount() == 0 })
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New("reports")
	go h.Run()
	defer h.Stop()

	slow := attach(t, h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.BroadcastBinary([]byte{1})
	h.BroadcastBinary([]byte{2})
	waitFor(t, func() bool { return h.ClientCount() == 0 })

	if m, ok := <-slow.send; !ok || m.Data[0] != 1 {
		t.Errorf("first message should still be delivered, got %+v %v", m, ok)
	}
	if _, ok := <-slow.send; ok {
		t.Error("slow client's channel should be closed")
	}
}

func TestHub_Stop(t *testing.T) {
	h := New("status")
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	c := attach(t, h, 1)
	waitFor(t, h.IsRunning)

	h.Stop()
	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if _, ok := <-c.send; ok {
		t.Error("clients should be closed on Stop")
	}
	if NewClient(h, nil) != nil {
		t.Error("NewClient should refuse a stopped hub")
	}
	if h.IsRunning() {
		t.Error("IsRunning should be false after Stop")
	}
}
