package signals

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

// ChangeHandler reacts to a document written by another process.
type ChangeHandler func(ctx context.Context, key storage.DocumentKey)

// Watcher detects document writes by comparing version counters between polls.
// The first poll of a key records a baseline without reporting a change.
type Watcher struct {
	store     storage.DocumentStore
	publisher Publisher
	logger    *zap.Logger

	mutex    sync.Mutex
	handlers map[storage.DocumentKey][]ChangeHandler
	seen     map[storage.DocumentKey]int64
}

// NewWatcher constructs a Watcher over store.
func NewWatcher(store storage.DocumentStore, publisher Publisher, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		store:     store,
		publisher: PublisherOrDiscard(publisher),
		logger:    logger,
		handlers:  make(map[storage.DocumentKey][]ChangeHandler),
		seen:      make(map[storage.DocumentKey]int64),
	}
}

// Watch registers handler for key.
func (watcher *Watcher) Watch(key storage.DocumentKey, handler ChangeHandler) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	watcher.handlers[key] = append(watcher.handlers[key], handler)
}

// Poll reads the current versions and dispatches changed keys.
func (watcher *Watcher) Poll(ctx context.Context) {
	watcher.mutex.Lock()
	keys := make([]storage.DocumentKey, 0, len(watcher.handlers))
	for key := range watcher.handlers {
		keys = append(keys, key)
	}
	watcher.mutex.Unlock()
	if len(keys) == 0 {
		return
	}

	versions, versionsErr := watcher.store.Versions(ctx, keys)
	if versionsErr != nil {
		watcher.logger.Warn("document_versions_poll_failed", zap.Error(versionsErr))
		return
	}

	type dispatch struct {
		key      storage.DocumentKey
		version  int64
		handlers []ChangeHandler
	}
	var pending []dispatch

	watcher.mutex.Lock()
	for _, key := range keys {
		version := versions[key]
		previous, known := watcher.seen[key]
		watcher.seen[key] = version
		if !known || previous == version {
			continue
		}
		handlers := append([]ChangeHandler(nil), watcher.handlers[key]...)
		pending = append(pending, dispatch{key: key, version: version, handlers: handlers})
	}
	watcher.mutex.Unlock()

	for _, change := range pending {
		watcher.logger.Debug("document_changed", zap.String("document_key", string(change.key)), zap.Int64("version", change.version))
		for _, handler := range change.handlers {
			handler(ctx, change.key)
		}
		watcher.publisher.Publish(New(TypeDocumentChanged, string(change.key), map[string]string{
			"version": strconv.FormatInt(change.version, 10),
		}))
	}
}
