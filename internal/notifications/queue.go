package notifications

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	// DefaultQueueCapacity bounds the assistant queues.
	DefaultQueueCapacity = 50
)

var (
	errAlreadyProcessed = errors.New("already_processed")
	errRecordMissing    = errors.New("record_missing")
)

// Accessors tell a Queue how to identify entries and flip their processed bit.
type Accessors[T any] struct {
	ID            func(T) string
	Processed     func(T) bool
	MarkProcessed func(*T)
}

// Queue is a capped, newest-first list document. Pushing past capacity drops
// the oldest entries.
type Queue[T any] struct {
	slot      *storage.Slot[[]T]
	capacity  int
	accessors Accessors[T]
}

// NewQueue binds key to a capped list.
func NewQueue[T any](documents storage.DocumentStore, key storage.DocumentKey, capacity int, accessors Accessors[T], logger *zap.Logger) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue[T]{
		slot: storage.NewSlot(documents, key, func() []T {
			return []T{}
		}, storage.WithSlotLogger(logger)),
		capacity:  capacity,
		accessors: accessors,
	}
}

// Push inserts entry at the head.
func (queue *Queue[T]) Push(ctx context.Context, entry T) {
	_, _ = queue.slot.Update(ctx, func(entries *[]T) error {
		updated := make([]T, 0, len(*entries)+1)
		updated = append(updated, entry)
		updated = append(updated, *entries...)
		if len(updated) > queue.capacity {
			updated = updated[:queue.capacity]
		}
		*entries = updated
		return nil
	})
}

// List returns every entry, newest first.
func (queue *Queue[T]) List(ctx context.Context) []T {
	return queue.slot.Read(ctx)
}

// Pending returns unprocessed entries, oldest first, so consumers work in arrival order.
func (queue *Queue[T]) Pending(ctx context.Context) []T {
	entries := queue.slot.Read(ctx)
	pending := make([]T, 0, len(entries))
	for index := len(entries) - 1; index >= 0; index-- {
		if queue.accessors.Processed == nil || !queue.accessors.Processed(entries[index]) {
			pending = append(pending, entries[index])
		}
	}
	return pending
}

// MarkProcessed flags the entry with id. It is idempotent and returns false
// when the entry has been evicted or the queue does not track processing.
func (queue *Queue[T]) MarkProcessed(ctx context.Context, id string) bool {
	if queue.accessors.ID == nil || queue.accessors.MarkProcessed == nil {
		return false
	}
	found := false
	_, _ = queue.slot.Update(ctx, func(entries *[]T) error {
		for index := range *entries {
			if queue.accessors.ID((*entries)[index]) != id {
				continue
			}
			found = true
			if queue.accessors.Processed != nil && queue.accessors.Processed((*entries)[index]) {
				return errAlreadyProcessed
			}
			queue.accessors.MarkProcessed(&(*entries)[index])
			return nil
		}
		return errRecordMissing
	})
	return found
}

// Key returns the backing document key.
func (queue *Queue[T]) Key() storage.DocumentKey {
	return queue.slot.Key()
}
