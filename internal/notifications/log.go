// Package notifications holds the capped cross-component lists: the
// notification log and the per-consumer assistant queues.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	// DefaultLogCapacity bounds the notification log; the oldest inserted records fall off first.
	DefaultLogCapacity = 50

	errorMessageEncodePayload = "notifications: encode payload"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Types     []string
	Since     time.Time
	Processed *bool
}

func (filter Filter) matches(record model.NotificationRecord) bool {
	if len(filter.Types) > 0 {
		matched := false
		for _, notificationType := range filter.Types {
			if record.Type == notificationType {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if !filter.Since.IsZero() && record.Timestamp.Before(filter.Since) {
		return false
	}
	if filter.Processed != nil && record.Processed != *filter.Processed {
		return false
	}
	return true
}

// Log is the notification_log document: newest first, size-bounded.
type Log struct {
	slot     *storage.Slot[[]model.NotificationRecord]
	capacity int
	logger   *zap.Logger
	clock    func() time.Time
}

// LogOption customizes a Log.
type LogOption func(*Log)

// WithLogCapacity overrides DefaultLogCapacity.
func WithLogCapacity(capacity int) LogOption {
	return func(log *Log) {
		if capacity > 0 {
			log.capacity = capacity
		}
	}
}

// WithLogClock overrides the timestamp source.
func WithLogClock(clock func() time.Time) LogOption {
	return func(log *Log) {
		if clock != nil {
			log.clock = clock
		}
	}
}

// NewLog binds the notification log document.
func NewLog(documents storage.DocumentStore, logger *zap.Logger, options ...LogOption) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := &Log{
		capacity: DefaultLogCapacity,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(log)
	}
	log.slot = storage.NewSlot(documents, storage.KeyNotificationLog, func() []model.NotificationRecord {
		return []model.NotificationRecord{}
	}, storage.WithSlotLogger(logger))
	return log
}

// Append records an event at the head of the log and trims the tail to capacity.
func (log *Log) Append(ctx context.Context, notificationType string, data any, source string) (model.NotificationRecord, error) {
	payload, encodeErr := encodePayload(data)
	if encodeErr != nil {
		return model.NotificationRecord{}, encodeErr
	}
	record, recordErr := model.NewNotificationRecord(model.NotificationRecordInput{
		Type:     notificationType,
		Data:     payload,
		Source:   source,
		Occurred: log.clock(),
	})
	if recordErr != nil {
		return model.NotificationRecord{}, recordErr
	}

	var evicted int
	_, updateErr := log.slot.Update(ctx, func(records *[]model.NotificationRecord) error {
		updated := make([]model.NotificationRecord, 0, len(*records)+1)
		updated = append(updated, record)
		updated = append(updated, *records...)
		if len(updated) > log.capacity {
			evicted = len(updated) - log.capacity
			updated = updated[:log.capacity]
		}
		*records = updated
		return nil
	})
	if updateErr != nil {
		return model.NotificationRecord{}, updateErr
	}
	if evicted > 0 {
		log.logger.Debug("notification_log_evicted", zap.Int("evicted", evicted))
	}
	return record, nil
}

// List returns matching records, newest first.
func (log *Log) List(ctx context.Context, filter Filter) []model.NotificationRecord {
	records := log.slot.Read(ctx)
	matching := make([]model.NotificationRecord, 0, len(records))
	for _, record := range records {
		if filter.matches(record) {
			matching = append(matching, record)
		}
	}
	return matching
}

// MarkProcessed flags the record as consumed. It is idempotent and returns
// false only when the record is no longer in the log.
func (log *Log) MarkProcessed(ctx context.Context, target model.NotificationRecord) bool {
	found := false
	_, _ = log.slot.Update(ctx, func(records *[]model.NotificationRecord) error {
		for index := range *records {
			if (*records)[index].SameIdentity(target) {
				found = true
				if (*records)[index].Processed {
					return errAlreadyProcessed
				}
				(*records)[index].Processed = true
				return nil
			}
		}
		return errRecordMissing
	})
	return found
}

// Capacity returns the configured bound.
func (log *Log) Capacity() int {
	return log.capacity
}

func encodePayload(data any) (json.RawMessage, error) {
	switch typed := data.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return typed, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageEncodePayload, err)
	}
	return encoded, nil
}
