package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the glaze engine.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies the component that emitted the event.
	Source string `json:"source"`

	// SessionID is the associated transition session, if applicable.
	SessionID string `json:"session_id,omitempty"`

	// Descriptor is the requested theme descriptor, if applicable.
	Descriptor string `json:"descriptor,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeTransitionStarted   = "transition.started"
	EventTypeTransitionCompleted = "transition.completed"
	EventTypeTransitionCancelled = "transition.cancelled"
	EventTypeTransitionFailed    = "transition.failed"
	EventTypeCacheEvicted        = "cache.evicted"
	EventTypeContrastViolation   = "a11y.contrast_violation"
	EventTypeAnnouncement        = "a11y.announcement"
	EventTypeSlowTransition      = "perf.slow_transition"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered to a subscriber.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given
// configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Subscribe registers a subscriber with an optional filter. A nil filter
// receives every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = append(ep.subscribers, subscriberEntry{subscriber: subscriber, filter: filter})
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishTransitionStarted publishes a transition started event.
func (ep *EventPublisher) PublishTransitionStarted(sessionID, descriptor string) error {
	return ep.Publish(Event{
		Type:       EventTypeTransitionStarted,
		Source:     "orchestrator",
		SessionID:  sessionID,
		Descriptor: descriptor,
		Message:    fmt.Sprintf("transition %s started for %s", sessionID, descriptor),
		Level:      EventLevelInfo,
	})
}

// PublishTransitionCompleted publishes a transition completed event.
func (ep *EventPublisher) PublishTransitionCompleted(sessionID, descriptor string, duration time.Duration, violations int) error {
	return ep.Publish(Event{
		Type:       EventTypeTransitionCompleted,
		Source:     "orchestrator",
		SessionID:  sessionID,
		Descriptor: descriptor,
		Message:    fmt.Sprintf("transition %s completed in %s", sessionID, duration),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"duration":   duration.Seconds(),
			"violations": violations,
		},
	})
}

// PublishTransitionCancelled publishes a transition cancelled event.
func (ep *EventPublisher) PublishTransitionCancelled(sessionID, descriptor, phase string) error {
	return ep.Publish(Event{
		Type:       EventTypeTransitionCancelled,
		Source:     "orchestrator",
		SessionID:  sessionID,
		Descriptor: descriptor,
		Message:    fmt.Sprintf("transition %s cancelled during %s", sessionID, phase),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"phase": phase,
		},
	})
}

// PublishTransitionFailed publishes a transition failed event.
func (ep *EventPublisher) PublishTransitionFailed(sessionID, descriptor, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeTransitionFailed,
		Source:     "orchestrator",
		SessionID:  sessionID,
		Descriptor: descriptor,
		Message:    fmt.Sprintf("transition %s failed: %s", sessionID, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishCacheEvicted publishes a cache eviction event.
func (ep *EventPublisher) PublishCacheEvicted(keys []string) error {
	return ep.Publish(Event{
		Type:    EventTypeCacheEvicted,
		Source:  "variable-cache",
		Message: fmt.Sprintf("evicted %d cached variable set(s)", len(keys)),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"keys": keys,
		},
	})
}

// PublishAnnouncement publishes a screen reader announcement event.
func (ep *EventPublisher) PublishAnnouncement(message, priority string) error {
	return ep.Publish(Event{
		Type:    EventTypeAnnouncement,
		Source:  "announcer",
		Message: message,
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"priority": priority,
		},
	})
}

// PublishContrastViolation publishes a contrast violation event.
func (ep *EventPublisher) PublishContrastViolation(sessionID, detail string) error {
	return ep.Publish(Event{
		Type:      EventTypeContrastViolation,
		Source:    "a11y",
		SessionID: sessionID,
		Message:   detail,
		Level:     EventLevelWarning,
	})
}

// PublishSlowTransition publishes a slow transition warning.
func (ep *EventPublisher) PublishSlowTransition(sessionID string, duration, budget time.Duration) error {
	return ep.Publish(Event{
		Type:      EventTypeSlowTransition,
		Source:    "perf",
		SessionID: sessionID,
		Message:   fmt.Sprintf("transition %s took %s, budget %s", sessionID, duration, budget),
		Level:     EventLevelWarning,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
			"budget":   budget.Seconds(),
		},
	})
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()
	for {
		select {
		case <-ep.ctx.Done():
			// Drain remaining events before exit.
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		}
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	subscribers := make([]subscriberEntry, len(ep.subscribers))
	copy(subscribers, ep.subscribers)
	ep.mu.RUnlock()

	for _, entry := range subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher, delivering any buffered events first.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled || ep.cancel == nil {
		return nil
	}
	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
