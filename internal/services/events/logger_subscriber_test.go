package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
)

func TestNewLoggerSubscriber(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewLogger())

	err := subscriber(context.Background(), interfaces.Event{
		Type: interfaces.EventRunCompleted,
		Payload: map[string]interface{}{
			"run_id":     "run_1",
			"channel_id": "ch_1",
			"status":     "succeeded",
		},
	})
	assert.NoError(t, err)

	err = subscriber(context.Background(), interfaces.Event{Type: interfaces.EventSchedulerTick})
	assert.NoError(t, err)
}

func TestService_PublishSync(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var calls int32
	require.NoError(t, svc.Subscribe(interfaces.EventRunStarted, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventRunStarted, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventRunStarted, func(ctx context.Context, e interfaces.Event) error {
		panic("handler panic")
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventRunStarted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 event handlers failed")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventRunSkipped}))
	assert.Error(t, svc.Subscribe(interfaces.EventRunSkipped, nil))
}

func TestService_PublishAsync(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var mu sync.Mutex
	var got []interfaces.EventType
	require.NoError(t, SubscribeAll(svc, func(ctx context.Context, e interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Publish(ctx, interfaces.Event{Type: interfaces.EventStageChanged}))
	cancel()
	svc.Wait()

	mu.Lock()
	assert.Equal(t, []interfaces.EventType{interfaces.EventStageChanged}, got)
	mu.Unlock()

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventStageChanged}))
	svc.Wait()
	mu.Lock()
	assert.Len(t, got, 1, "close drops subscribers")
	mu.Unlock()
}

func TestSubscribeLoggerToAllEvents(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	require.NoError(t, SubscribeLoggerToAllEvents(svc, arbor.NewLogger()))
	for _, eventType := range AllEventTypes {
		assert.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: eventType}))
	}
}

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	data     [][]byte
	err      error
	drained  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.data = append(c.data, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSForwarder(t *testing.T) {
	conn := &fakeConn{}
	fwd := newNATSForwarder(conn, "trendreel.events", arbor.NewLogger())
	fwd.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	svc := NewService(arbor.NewLogger())
	require.NoError(t, fwd.Attach(svc))

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunCompleted,
		Payload: map[string]interface{}{"run_id": "run_1", "success": true},
	}))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "trendreel.events.run_completed", conn.subjects[0])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.data[0], &decoded))
	assert.Equal(t, "run_completed", decoded["type"])
	assert.Equal(t, "2025-06-01T00:00:00Z", decoded["timestamp"])
	assert.Equal(t, "run_1", decoded["payload"].(map[string]interface{})["run_id"])

	conn.err = errors.New("disconnected")
	err := fwd.Handle(context.Background(), interfaces.Event{Type: interfaces.EventRunSkipped})
	assert.ErrorContains(t, err, "disconnected")

	require.NoError(t, fwd.Close())
	assert.True(t, conn.drained)
}
