package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event records one observable state change in the engine.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated rolling update run, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Group is the associated member group, if applicable.
	Group string `json:"group,omitempty"`

	// Member is the associated member name, if applicable.
	Member string `json:"member,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeRolloutStarted   = "rollout.started"
	EventTypeRolloutCompleted = "rollout.completed"
	EventTypeRolloutFailed    = "rollout.failed"
	EventTypeBatchStarted     = "batch.started"
	EventTypeBatchCompleted   = "batch.completed"
	EventTypeOperationFailed  = "operation.failed"
	EventTypeSnapshotSaved    = "snapshot.saved"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers, synchronously or through a
// bounded buffer.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
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

// Publish delivers an event to all subscribers.
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

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

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

// PublishRolloutStarted publishes a rolling update started event.
func (ep *EventPublisher) PublishRolloutStarted(runID, group string, batches int) error {
	return ep.Publish(Event{
		Type:    EventTypeRolloutStarted,
		Source:  "updater",
		RunID:   runID,
		Group:   group,
		Message: fmt.Sprintf("Rolling update %s of group %s started with %d batches", runID, group, batches),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"batches": batches,
		},
	})
}

// PublishRolloutCompleted publishes a rolling update completed event.
func (ep *EventPublisher) PublishRolloutCompleted(runID, group string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRolloutCompleted,
		Source:  "updater",
		RunID:   runID,
		Group:   group,
		Message: fmt.Sprintf("Rolling update %s of group %s completed", runID, group),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishRolloutFailed publishes a rolling update failed event.
func (ep *EventPublisher) PublishRolloutFailed(runID, group, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRolloutFailed,
		Source:  "updater",
		RunID:   runID,
		Group:   group,
		Message: fmt.Sprintf("Rolling update %s of group %s failed: %s", runID, group, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishBatchStarted publishes a batch started event.
func (ep *EventPublisher) PublishBatchStarted(runID, group string, batch, capacity, updated int) error {
	return ep.Publish(Event{
		Type:    EventTypeBatchStarted,
		Source:  "updater",
		RunID:   runID,
		Group:   group,
		Message: fmt.Sprintf("Batch %d of group %s started: capacity %d, updating %d members", batch, group, capacity, updated),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"batch":    batch,
			"capacity": capacity,
			"updated":  updated,
		},
	})
}

// PublishBatchCompleted publishes a batch completed event.
func (ep *EventPublisher) PublishBatchCompleted(runID, group string, batch int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeBatchCompleted,
		Source:  "updater",
		RunID:   runID,
		Group:   group,
		Message: fmt.Sprintf("Batch %d of group %s settled", batch, group),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"batch":    batch,
			"duration": duration.Seconds(),
		},
	})
}

// PublishOperationFailed publishes a member operation failed event.
func (ep *EventPublisher) PublishOperationFailed(runID, member, action, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeOperationFailed,
		Source:  "lifecycle",
		RunID:   runID,
		Member:  member,
		Message: fmt.Sprintf("%s of member %s failed: %s", action, member, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"action": action,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber, with an optional filter.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents drains the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher, draining the buffer.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
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
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a minimum level.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRunID creates a filter that only allows events for a specific run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}

// FilterByGroup creates a filter that only allows events for a specific group.
func FilterByGroup(group string) EventFilter {
	return func(event Event) bool {
		return event.Group == group
	}
}
