package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

// ErrStoreUnavailable is returned by FlakyDocumentStore while failing.
var ErrStoreUnavailable = errors.New("store_unavailable")

// FlakyDocumentStore wraps a store and fails writes or reads on demand.
type FlakyDocumentStore struct {
	storage.DocumentStore

	mutex      sync.Mutex
	failWrites bool
	failReads  bool
	putCount   int
}

// NewFlakyDocumentStore wraps inner.
func NewFlakyDocumentStore(inner storage.DocumentStore) *FlakyDocumentStore {
	return &FlakyDocumentStore{DocumentStore: inner}
}

// FailWrites toggles write failures.
func (store *FlakyDocumentStore) FailWrites(fail bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.failWrites = fail
}

// FailReads toggles read failures.
func (store *FlakyDocumentStore) FailReads(fail bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.failReads = fail
}

// PutCount returns the number of successful writes.
func (store *FlakyDocumentStore) PutCount() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.putCount
}

func (store *FlakyDocumentStore) Get(ctx context.Context, key storage.DocumentKey) (storage.StoredDocument, error) {
	store.mutex.Lock()
	failing := store.failReads
	store.mutex.Unlock()
	if failing {
		return storage.StoredDocument{}, ErrStoreUnavailable
	}
	return store.DocumentStore.Get(ctx, key)
}

func (store *FlakyDocumentStore) Put(ctx context.Context, key storage.DocumentKey, body []byte) (int64, error) {
	store.mutex.Lock()
	failing := store.failWrites
	store.mutex.Unlock()
	if failing {
		return 0, ErrStoreUnavailable
	}
	version, err := store.DocumentStore.Put(ctx, key, body)
	if err == nil {
		store.mutex.Lock()
		store.putCount++
		store.mutex.Unlock()
	}
	return version, err
}
