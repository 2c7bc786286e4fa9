package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	svc := NewRealtimeService()

	sub := svc.Subscribe(context.Background())
	assert.Equal(t, 1, svc.GetSubscriberCount())

	svc.PublishTraceIngested(context.Background(), "abc123")

	select {
	case event := <-sub.Channel:
		assert.Equal(t, EventTypeTraceIngested, event.Type)
		data := event.Data.(map[string]string)
		assert.Equal(t, "abc123", data["traceId"])
	case <-time.After(time.Second):
		t.Fatal("expected event on subscriber channel")
	}

	svc.Unsubscribe(sub.ID)
	assert.Equal(t, 0, svc.GetSubscriberCount())

	// Events published after unsubscribe go nowhere.
	svc.PublishTraceIngested(context.Background(), "def456")
	_, open := <-sub.Channel
	assert.False(t, open)
}

func TestSubscribe_ContextCancelCleansUp(t *testing.T) {
	svc := NewRealtimeService()

	ctx, cancel := context.WithCancel(context.Background())
	svc.Subscribe(ctx)
	require.Equal(t, 1, svc.GetSubscriberCount())

	cancel()
	assert.Eventually(t, func() bool {
		return svc.GetSubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestPublish_SkipsFullChannel(t *testing.T) {
	svc := NewRealtimeService()
	sub := svc.Subscribe(context.Background())

	for i := 0; i < 150; i++ {
		svc.PublishEvalCompleted(context.Background(), "report-1", 1, 0)
	}

	// Channel capacity is 100; the overflow is dropped, not blocked on.
	assert.Len(t, sub.Channel, 100)
	svc.Unsubscribe(sub.ID)
}

func TestFormatSSE(t *testing.T) {
	payload, err := FormatSSE(&RealtimeEvent{Type: EventTypeCaseCaptured, Data: map[string]string{"testId": "uuid-1"}})
	require.NoError(t, err)

	text := string(payload)
	assert.Contains(t, text, "data: ")
	assert.Contains(t, text, EventTypeCaseCaptured)
	assert.Contains(t, text, "uuid-1")
	assert.Equal(t, "\n\n", text[len(text)-2:])
}
