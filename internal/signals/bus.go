package signals

import (
	"context"
	"sync"
	"time"
)

// Type names a cross-component signal.
type Type string

const (
	TypeLeadSubmitted          Type = "lead-submitted"
	TypeFeatureFlagChanged     Type = "feature-flag-changed"
	TypeEmergencyModeActivated Type = "emergency-mode-activated"
	TypeAuthorizationRequested Type = "authorization-requested"
	TypeAuthorizationResolved  Type = "authorization-resolved"
	TypeClientCreated          Type = "client-created"
	TypeIdentityBlocked        Type = "identity-blocked"
	TypeDocumentChanged        Type = "document-changed"
)

// Signal is an ephemeral notification; durable state lives in documents.
type Signal struct {
	Type       Type              `json:"type"`
	Subject    string            `json:"subject,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// New stamps a signal with the current time.
func New(signalType Type, subject string, attributes map[string]string) Signal {
	return Signal{
		Type:       signalType,
		Subject:    subject,
		Attributes: attributes,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher accepts signals.
type Publisher interface {
	Publish(signal Signal)
}

// Discard drops every signal.
type Discard struct{}

func (Discard) Publish(Signal) {}

// PublisherOrDiscard substitutes Discard for nil.
func PublisherOrDiscard(publisher Publisher) Publisher {
	if publisher == nil {
		return Discard{}
	}
	return publisher
}

const defaultSubscriberBuffer = 16

// Bus fans signals out to subscribers. Slow subscribers miss signals
// rather than blocking publishers.
type Bus struct {
	mutex        sync.Mutex
	nextID       int64
	subscribers  map[int64]*Subscription
	closed       bool
	bufferLength int
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers:  make(map[int64]*Subscription),
		bufferLength: defaultSubscriberBuffer,
	}
}

// Subscribe returns a subscription receiving the listed types, or every type when none are given.
// It returns nil after Close.
func (bus *Bus) Subscribe(types ...Type) *Subscription {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	if bus.closed {
		return nil
	}
	var filter map[Type]struct{}
	if len(types) > 0 {
		filter = make(map[Type]struct{}, len(types))
		for _, signalType := range types {
			filter[signalType] = struct{}{}
		}
	}
	subscription := &Subscription{
		bus:        bus,
		identifier: bus.nextID,
		events:     make(chan Signal, bus.bufferLength),
		filter:     filter,
	}
	bus.subscribers[subscription.identifier] = subscription
	bus.nextID++
	return subscription
}

// Publish delivers signal to every matching subscriber without blocking.
func (bus *Bus) Publish(signal Signal) {
	if bus == nil {
		return
	}
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	if bus.closed {
		return
	}
	for _, subscription := range bus.subscribers {
		if !subscription.accepts(signal.Type) {
			continue
		}
		select {
		case subscription.events <- signal:
		default:
		}
	}
}

// On runs handler for each matching signal until ctx ends or the bus closes.
func (bus *Bus) On(ctx context.Context, handler func(Signal), types ...Type) {
	subscription := bus.Subscribe(types...)
	if subscription == nil {
		return
	}
	go func() {
		defer subscription.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case signal, open := <-subscription.Events():
				if !open {
					return
				}
				handler(signal)
			}
		}
	}()
}

// Close stops the bus and closes all subscriber channels.
func (bus *Bus) Close() {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	if bus.closed {
		return
	}
	bus.closed = true
	for identifier, subscription := range bus.subscribers {
		close(subscription.events)
		delete(bus.subscribers, identifier)
	}
}

func (bus *Bus) remove(identifier int64) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	subscription, exists := bus.subscribers[identifier]
	if exists {
		delete(bus.subscribers, identifier)
		close(subscription.events)
	}
}

// Subscription is a single consumer of bus signals.
type Subscription struct {
	bus        *Bus
	identifier int64
	events     chan Signal
	filter     map[Type]struct{}
	once       sync.Once
}

// Events exposes the receive-only signal channel.
func (subscription *Subscription) Events() <-chan Signal {
	if subscription == nil {
		return nil
	}
	return subscription.events
}

// Close unregisters the subscription and closes its channel.
func (subscription *Subscription) Close() {
	if subscription == nil {
		return
	}
	subscription.once.Do(func() {
		if subscription.bus != nil {
			subscription.bus.remove(subscription.identifier)
		}
	})
}

func (subscription *Subscription) accepts(signalType Type) bool {
	if subscription.filter == nil {
		return true
	}
	_, accepted := subscription.filter[signalType]
	return accepted
}
