package signals_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
	"github.com/MarkoPoloResearchLab/leadloop/internal/testutil"
)

type recordingPublisher struct {
	mutex   sync.Mutex
	signals []signals.Signal
}

func (publisher *recordingPublisher) Publish(signal signals.Signal) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.signals = append(publisher.signals, signal)
}

func TestWatcherReportsChangesAfterBaseline(testingT *testing.T) {
	store := testutil.NewDocumentStore(testingT)
	ctx := context.Background()
	publisher := &recordingPublisher{}
	watcher := signals.NewWatcher(store, publisher, zap.NewNop())

	var changed []storage.DocumentKey
	watcher.Watch(storage.KeyFeaturesConfig, func(_ context.Context, key storage.DocumentKey) {
		changed = append(changed, key)
	})

	_, putErr := store.Put(ctx, storage.KeyFeaturesConfig, []byte(`{}`))
	require.NoError(testingT, putErr)

	watcher.Poll(ctx)
	require.Empty(testingT, changed)

	watcher.Poll(ctx)
	require.Empty(testingT, changed)

	_, putErr = store.Put(ctx, storage.KeyFeaturesConfig, []byte(`{"flags":{}}`))
	require.NoError(testingT, putErr)

	watcher.Poll(ctx)
	require.Equal(testingT, []storage.DocumentKey{storage.KeyFeaturesConfig}, changed)
	require.Len(testingT, publisher.signals, 1)
	require.Equal(testingT, signals.TypeDocumentChanged, publisher.signals[0].Type)
	require.Equal(testingT, "2", publisher.signals[0].Attributes["version"])
}

func TestWatcherSkipsWhenVersionsUnavailable(testingT *testing.T) {
	flaky := &failingVersionsStore{DocumentStore: testutil.NewDocumentStore(testingT)}
	watcher := signals.NewWatcher(flaky, nil, nil)
	calls := 0
	watcher.Watch(storage.KeyNotificationLog, func(context.Context, storage.DocumentKey) {
		calls++
	})

	watcher.Poll(context.Background())
	watcher.Poll(context.Background())
	require.Zero(testingT, calls)
}

type failingVersionsStore struct {
	storage.DocumentStore
}

func (failingVersionsStore) Versions(context.Context, []storage.DocumentKey) (map[storage.DocumentKey]int64, error) {
	return nil, testutil.ErrStoreUnavailable
}
