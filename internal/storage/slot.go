package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
)

const errorMessageSlotUnavailable = "storage: document unavailable"

// ErrSlotUnavailable indicates a write was refused because the document could
// not be read and no earlier value is known.
var ErrSlotUnavailable = errors.New(errorMessageSlotUnavailable)

// PersistFailureHook observes writes that could not reach the store.
type PersistFailureHook func(key DocumentKey)

// SlotOption customizes a Slot.
type SlotOption func(*slotOptions)

type slotOptions struct {
	logger          *zap.Logger
	onPersistFailed PersistFailureHook
}

// WithSlotLogger sets the logger used for degraded reads and failed writes.
func WithSlotLogger(logger *zap.Logger) SlotOption {
	return func(options *slotOptions) {
		if logger != nil {
			options.logger = logger
		}
	}
}

// WithPersistFailureHook registers a callback invoked after every failed write.
func WithPersistFailureHook(hook PersistFailureHook) SlotOption {
	return func(options *slotOptions) {
		options.onPersistFailed = hook
	}
}

// Slot is a typed view over one document. Writes from this process are
// serialized; the in-memory value stays authoritative when the store fails
// and is flushed again on the next access.
type Slot[T any] struct {
	store   DocumentStore
	key     DocumentKey
	initial func() T
	options slotOptions

	mutex     sync.Mutex
	cached    T
	hasCached bool
	dirty     bool
	version   int64
}

// NewSlot binds key in store to values of type T.
func NewSlot[T any](store DocumentStore, key DocumentKey, initial func() T, options ...SlotOption) *Slot[T] {
	resolved := slotOptions{
		logger: zap.NewNop(),
		onPersistFailed: func(key DocumentKey) {
			metrics.ObservePersistFailure(string(key))
		},
	}
	for _, option := range options {
		option(&resolved)
	}
	return &Slot[T]{
		store:   store,
		key:     key,
		initial: initial,
		options: resolved,
	}
}

// Key returns the document key.
func (slot *Slot[T]) Key() DocumentKey {
	return slot.key
}

// Read returns a private copy of the current value. When the document cannot
// be read and nothing was loaded before, the initial value is returned.
func (slot *Slot[T]) Read(ctx context.Context) T {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	value, loadErr := slot.loadLocked(ctx)
	if loadErr != nil {
		return slot.initial()
	}
	return slot.clone(value)
}

// Update applies mutate to the current value and persists the result.
// A mutate error aborts without writing. An unreadable document that was
// never loaded aborts with ErrSlotUnavailable so stored data is not replaced
// by the initial value.
func (slot *Slot[T]) Update(ctx context.Context, mutate func(*T) error) (T, error) {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	loaded, loadErr := slot.loadLocked(ctx)
	if loadErr != nil {
		return slot.initial(), loadErr
	}
	current := slot.clone(loaded)
	if err := mutate(&current); err != nil {
		return slot.clone(current), err
	}
	slot.cached = current
	slot.hasCached = true
	slot.dirty = true
	slot.flushLocked(ctx)
	return slot.clone(current), nil
}

// Replace overwrites the value wholesale without reading the stored one.
func (slot *Slot[T]) Replace(ctx context.Context, value T) T {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	slot.cached = slot.clone(value)
	slot.hasCached = true
	slot.dirty = true
	slot.flushLocked(ctx)
	return slot.clone(slot.cached)
}

// Reset deletes the document so the next read starts from the initial value.
func (slot *Slot[T]) Reset(ctx context.Context) error {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	if err := slot.store.Delete(ctx, slot.key); err != nil {
		return err
	}
	var zero T
	slot.cached = zero
	slot.hasCached = false
	slot.dirty = false
	slot.version = 0
	return nil
}

// Dirty reports whether a write is still waiting to reach the store.
func (slot *Slot[T]) Dirty() bool {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	return slot.dirty
}

// Version returns the last version observed or written by this slot.
func (slot *Slot[T]) Version() int64 {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	return slot.version
}

func (slot *Slot[T]) loadLocked(ctx context.Context) (T, error) {
	if slot.dirty {
		slot.flushLocked(ctx)
		return slot.cached, nil
	}

	document, getErr := slot.store.Get(ctx, slot.key)
	switch {
	case errors.Is(getErr, ErrDocumentNotFound):
		slot.cached = slot.initial()
		slot.version = 0
	case getErr != nil:
		slot.options.logger.Warn("load_document_failed", zap.String("document_key", string(slot.key)), zap.Error(getErr))
		if !slot.hasCached {
			var zero T
			return zero, fmt.Errorf("%w: %s: %v", ErrSlotUnavailable, slot.key, getErr)
		}
		return slot.cached, nil
	default:
		value := slot.initial()
		if decodeErr := json.Unmarshal(document.Body, &value); decodeErr != nil {
			slot.options.logger.Warn("malformed_document_reset", zap.String("document_key", string(slot.key)), zap.Error(decodeErr))
			slot.cached = slot.initial()
			slot.hasCached = true
			slot.version = document.Version
			slot.dirty = true
			slot.flushLocked(ctx)
			return slot.cached, nil
		}
		slot.cached = value
		slot.version = document.Version
	}
	slot.hasCached = true
	return slot.cached, nil
}

func (slot *Slot[T]) flushLocked(ctx context.Context) {
	body, encodeErr := json.Marshal(slot.cached)
	if encodeErr != nil {
		slot.options.logger.Error("encode_document_failed", zap.String("document_key", string(slot.key)), zap.Error(encodeErr))
		return
	}
	version, putErr := slot.store.Put(ctx, slot.key, body)
	if putErr != nil {
		slot.options.logger.Warn("persist_document_failed", zap.String("document_key", string(slot.key)), zap.Error(putErr))
		if slot.options.onPersistFailed != nil {
			slot.options.onPersistFailed(slot.key)
		}
		return
	}
	slot.dirty = false
	slot.version = version
}

func (slot *Slot[T]) clone(value T) T {
	body, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var copied T
	if err := json.Unmarshal(body, &copied); err != nil {
		return value
	}
	return copied
}
