package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log, err := logger.New(logger.Config{Level: logger.ERROR})
	require.NoError(t, err)
	return NewHub(log)
}

func newTestClient(id string, buffer int) *Client {
	return &Client{
		id:           id,
		send:         make(chan Message, buffer),
		subscribedAt: time.Now(),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.id)
		return Message{}
	}
}

func TestSnapshotGoesToNewSubscriberOnly(t *testing.T) {
	hub := newTestHub(t)
	hub.SetSnapshotProvider(func(context.Context) (interface{}, error) {
		return map[string]interface{}{"count": 2}, nil
	})

	first := newTestClient("first", 4)
	hub.addSubscriber(context.Background(), first)
	receive(t, first) // first gets its own snapshot on connect

	second := newTestClient("second", 4)
	hub.addSubscriber(context.Background(), second)

	msg := receive(t, second)
	assert.Equal(t, "SNAPSHOT", msg.Type)
	assert.Equal(t, map[string]interface{}{"count": 2}, msg.Payload)

	// The existing subscriber is not re-sent a snapshot.
	select {
	case msg := <-first.send:
		t.Fatalf("existing subscriber received unexpected %s message", msg.Type)
	default:
	}
}

func TestSnapshotProviderErrorStillRegisters(t *testing.T) {
	hub := newTestHub(t)
	hub.SetSnapshotProvider(func(context.Context) (interface{}, error) {
		return nil, errors.New("store unavailable")
	})

	client := newTestClient("c1", 4)
	hub.addSubscriber(context.Background(), client)

	assert.Equal(t, 1, hub.ClientCount())
	select {
	case <-client.send:
		t.Fatal("no snapshot should be sent when the provider fails")
	default:
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := newTestHub(t)

	a := newTestClient("a", 4)
	b := newTestClient("b", 4)
	hub.addSubscriber(context.Background(), a)
	hub.addSubscriber(context.Background(), b)

	alert := &models.Alert{ID: 1, Severity: models.SeverityCritical, Message: "replica behind"}
	hub.publish(Message{Type: "ALERT", Payload: alert})

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, "ALERT", msg.Type)
		assert.Equal(t, alert, msg.Payload)
	}
}

func TestSlowSubscriberDroppedWithoutBlockingOthers(t *testing.T) {
	hub := newTestHub(t)

	slow := newTestClient("slow", 1)
	healthy := newTestClient("healthy", 4)
	hub.addSubscriber(context.Background(), slow)
	hub.addSubscriber(context.Background(), healthy)

	// Fill the slow subscriber's buffer so the next publish cannot land.
	slow.send <- Message{Type: "ALERT"}

	hub.publish(Message{Type: "ALERT", Payload: &models.Alert{ID: 2}})

	assert.Equal(t, 1, hub.ClientCount())
	msg := receive(t, healthy)
	assert.Equal(t, "ALERT", msg.Type)
}

func TestRemoveSubscriberIdempotent(t *testing.T) {
	hub := newTestHub(t)

	client := newTestClient("c1", 4)
	hub.addSubscriber(context.Background(), client)
	require.Equal(t, 1, hub.ClientCount())

	hub.removeSubscriber(client)
	hub.removeSubscriber(client) // second removal is a no-op
	assert.Equal(t, 0, hub.ClientCount())

	// The send channel was closed exactly once.
	_, open := <-client.send
	assert.False(t, open)
}

func TestPublishNeverBlocksWhileRunLoopStalled(t *testing.T) {
	hub := newTestHub(t)

	release := make(chan struct{})
	var sawDeadline atomic.Bool
	hub.SetSnapshotProvider(func(ctx context.Context) (interface{}, error) {
		if _, ok := ctx.Deadline(); ok {
			sawDeadline.Store(true)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Park the run loop inside the snapshot call.
	hub.register <- newTestClient("c1", 4)

	// Firing must stay non-blocking even past the broadcast buffer size.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 2*cap(hub.broadcast); i++ {
			hub.Publish(&models.Alert{ID: int64(i), Severity: models.SeverityWarning})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked the firing path while the run loop was stalled")
	}

	assert.True(t, sawDeadline.Load(), "snapshot call should carry a deadline")
}

func TestRunDeliversBroadcastAndShutsDownCleanly(t *testing.T) {
	hub := newTestHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := newTestClient("c1", 4)
	hub.register <- client

	hub.Publish(&models.Alert{ID: 3, Severity: models.SeverityWarning})

	msg := receive(t, client)
	assert.Equal(t, "ALERT", msg.Type)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not shut down")
	}

	assert.Equal(t, 0, hub.ClientCount())
}
