package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RealtimeEvent represents an event to be sent to clients
type RealtimeEvent struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber represents a connected client
type Subscriber struct {
	ID      string
	Channel chan *RealtimeEvent
	Done    chan struct{}
}

// RealtimeService handles real-time event streaming
type RealtimeService struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

// NewRealtimeService creates a new realtime service
func NewRealtimeService() *RealtimeService {
	return &RealtimeService{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe creates a new subscription
func (s *RealtimeService) Subscribe(ctx context.Context) *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscriber{
		ID:      uuid.New().String(),
		Channel: make(chan *RealtimeEvent, 100),
		Done:    make(chan struct{}),
	}

	s.subscribers[sub.ID] = sub

	// Clean up when context is done
	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe(sub.ID)
		case <-sub.Done:
		}
	}()

	return sub
}

// Unsubscribe removes a subscription
func (s *RealtimeService) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscribers[id]; ok {
		close(sub.Done)
		close(sub.Channel)
		delete(s.subscribers, id)
	}
}

// Publish sends an event to all subscribers
func (s *RealtimeService) Publish(ctx context.Context, eventType string, data any) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event := &RealtimeEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	for _, sub := range s.subscribers {
		select {
		case sub.Channel <- event:
		default:
			// Channel is full, skip this subscriber
		}
	}
}

// PublishTraceIngested publishes a trace ingested event
func (s *RealtimeService) PublishTraceIngested(ctx context.Context, traceID string) {
	s.Publish(ctx, EventTypeTraceIngested, map[string]string{
		"traceId": traceID,
	})
}

// PublishCaseCaptured publishes an eval case captured event
func (s *RealtimeService) PublishCaseCaptured(ctx context.Context, testID string) {
	s.Publish(ctx, EventTypeCaseCaptured, map[string]string{
		"testId": testID,
	})
}

// PublishEvalCompleted publishes an evaluation batch completed event
func (s *RealtimeService) PublishEvalCompleted(ctx context.Context, reportID string, passed, failed int) {
	s.Publish(ctx, EventTypeEvalCompleted, map[string]any{
		"reportId": reportID,
		"passed":   passed,
		"failed":   failed,
	})
}

// GetSubscriberCount returns the number of active subscribers
func (s *RealtimeService) GetSubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// FormatSSE formats an event for SSE
func FormatSSE(event *RealtimeEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return append([]byte("data: "), append(data, '\n', '\n')...), nil
}

// EventTypes constants for event types
const (
	EventTypeTraceIngested = "trace.ingested"
	EventTypeCaseCaptured  = "eval.case_captured"
	EventTypeEvalCompleted = "eval.run_completed"
)
