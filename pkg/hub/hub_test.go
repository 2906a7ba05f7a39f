package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h, cancel
}

// attach registers a connectionless client for inspecting sends.
func attach(h *Hub, buf int) *Client {
	c := &Client{hub: h, send: make(chan Message, buf)}
	h.register <- c
	return c
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case m, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return Message{}
}

func TestHubBroadcast(t *testing.T) {
	h, _ := startHub(t)
	a, b := attach(h, 4), attach(h, 4)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"line1": "Thinking..."}))
	assert.JSONEq(t, `{"line1":"Thinking..."}`, string(recv(t, a).Data))
	assert.JSONEq(t, `{"line1":"Thinking..."}`, string(recv(t, b).Data))
}

func TestHubReplaysLastMessage(t *testing.T) {
	h, _ := startHub(t)
	first := attach(h, 4)
	require.NoError(t, h.BroadcastJSON("ready"))
	recv(t, first)

	late := attach(h, 4)
	assert.Equal(t, `"ready"`, string(recv(t, late).Data))
}

func TestHubDropsSlowClient(t *testing.T) {
	h, _ := startHub(t)
	slow := attach(h, 1)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.Broadcast(Message{Data: []byte("1")})
	h.Broadcast(Message{Data: []byte("2")})
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)

	<-slow.send
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestHubStopClosesClients(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := attach(h, 1)
	assert.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	cancel()
	<-h.done

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, h.IsRunning())
	assert.Nil(t, NewClient(h, nil), "stopped hub refuses clients")
}
