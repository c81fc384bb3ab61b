package libraries

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

func receive(t *testing.T, c *Client) WebSocketMessage {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg WebSocketMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	return WebSocketMessage{}
}

func TestHubDeliversOnlyToProjectSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := newTestClient("a", 4)
	b := newTestClient("b", 4)
	hub.Register <- a
	hub.Register <- b
	hub.Subscribe(a, "p1")
	hub.Subscribe(b, "p2")

	hub.Publish("p1", WebSocketMessageTypeShapes, map[string]int{"version": 3})

	msg := receive(t, a)
	assert.Equal(t, WebSocketMessageTypeShapes, msg.Type)
	assert.Equal(t, map[string]interface{}{"version": 3.0}, msg.Data)
	select {
	case <-b.Send:
		t.Fatal("client on another project got the event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubResubscribeMovesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := newTestClient("a", 4)
	hub.Register <- a
	hub.Subscribe(a, "p1")
	hub.Subscribe(a, "p2")

	hub.Publish("p1", WebSocketMessageTypeShapes, nil)
	hub.Publish("p2", WebSocketMessageTypeErrorNotice, nil)

	assert.Equal(t, WebSocketMessageTypeErrorNotice, receive(t, a).Type)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow := newTestClient("slow", 1)
	hub.Register <- slow
	hub.Subscribe(slow, "p1")

	hub.Publish("p1", WebSocketMessageTypeShapes, nil)
	hub.Publish("p1", WebSocketMessageTypeShapes, nil)

	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-slow.Send:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond, "slow client's send channel is closed")
}

func TestParseWebSocketMessage(t *testing.T) {
	msg, err := parseWebSocketMessage([]byte(`{"type":"subscribe","data":{"project_id":"p1"}}`))
	require.NoError(t, err)
	assert.Equal(t, WebSocketMessageTypeSubscribe, msg.Type)
	assert.Equal(t, &SubscribePayload{ProjectId: "p1"}, msg.Data)

	msg, err = parseWebSocketMessage([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Nil(t, msg.Data)

	_, err = parseWebSocketMessage([]byte(`not json`))
	assert.Error(t, err)
}
