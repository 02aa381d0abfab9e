// Package features owns the feature toggle document.
package features

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	operationToggle    = "toggle"
	operationEnable    = "enable"
	operationDisable   = "disable"
	operationEmergency = "emergency"
	operationReset     = "reset"

	resultApplied     = "applied"
	resultUnknownFlag = "unknown_flag"
	resultUnconfirmed = "unconfirmed"
)

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for last_updated stamps.
func WithClock(clock func() time.Time) Option {
	return func(store *Store) {
		if clock != nil {
			store.clock = clock
		}
	}
}

// WithSlotOptions forwards options to the underlying document slot.
func WithSlotOptions(options ...storage.SlotOption) Option {
	return func(store *Store) {
		store.slotOptions = append(store.slotOptions, options...)
	}
}

// Store is the typed accessor over the features_config document.
// The in-memory flag set answers reads; every mutation persists the whole document.
type Store struct {
	slot        *storage.Slot[model.FeatureFlagSet]
	slotOptions []storage.SlotOption
	publisher   signals.Publisher
	logger      *zap.Logger
	clock       func() time.Time

	mutex   sync.RWMutex
	current model.FeatureFlagSet
}

// NewStore loads the flag set, writing defaults on first use.
func NewStore(ctx context.Context, documents storage.DocumentStore, publisher signals.Publisher, logger *zap.Logger, options ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &Store{
		publisher: signals.PublisherOrDiscard(publisher),
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(store)
	}
	slotOptions := append([]storage.SlotOption{storage.WithSlotLogger(logger)}, store.slotOptions...)
	store.slot = storage.NewSlot(documents, storage.KeyFeaturesConfig, func() model.FeatureFlagSet {
		return model.DefaultFeatureFlagSet(store.clock())
	}, slotOptions...)
	store.current = store.slot.Read(ctx).Normalize()
	return store
}

// Status returns a snapshot of the flag set.
func (store *Store) Status() model.FeatureFlagSet {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.current.Clone()
}

// IsEnabled reports the flag value; unknown names are disabled.
func (store *Store) IsEnabled(name model.FlagName) bool {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.current.Flags[name]
}

// Toggle flips a known flag.
func (store *Store) Toggle(ctx context.Context, name model.FlagName) bool {
	return store.mutateFlag(ctx, operationToggle, name, func(value bool) bool { return !value })
}

// Enable sets a known flag to true.
func (store *Store) Enable(ctx context.Context, name model.FlagName) bool {
	return store.mutateFlag(ctx, operationEnable, name, func(bool) bool { return true })
}

// Disable sets a known flag to false.
func (store *Store) Disable(ctx context.Context, name model.FlagName) bool {
	return store.mutateFlag(ctx, operationDisable, name, func(bool) bool { return false })
}

// EmergencyMode keeps only the essential flags enabled.
func (store *Store) EmergencyMode(ctx context.Context) model.FeatureFlagSet {
	updated := store.apply(ctx, func(flagSet *model.FeatureFlagSet) error {
		for _, name := range model.KnownFlags() {
			flagSet.Flags[name] = model.IsEssentialFlag(name)
		}
		return nil
	})
	metrics.ObserveFlagMutation(operationEmergency, resultApplied)
	store.logger.Warn("emergency_mode_activated", zap.Time("last_updated", updated.LastUpdated))
	store.publisher.Publish(signals.New(signals.TypeEmergencyModeActivated, string(storage.KeyFeaturesConfig), nil))
	store.publisher.Publish(signals.New(signals.TypeFeatureFlagChanged, string(storage.KeyFeaturesConfig), map[string]string{
		"operation": operationEmergency,
	}))
	return updated
}

// ResetToDefault replaces the flag set with the compiled-in defaults once confirmed.
func (store *Store) ResetToDefault(ctx context.Context, confirmed bool) bool {
	if !confirmed {
		metrics.ObserveFlagMutation(operationReset, resultUnconfirmed)
		return false
	}
	store.apply(ctx, func(flagSet *model.FeatureFlagSet) error {
		*flagSet = model.DefaultFeatureFlagSet(store.clock())
		return nil
	})
	metrics.ObserveFlagMutation(operationReset, resultApplied)
	store.logger.Info("feature_flags_reset")
	store.publisher.Publish(signals.New(signals.TypeFeatureFlagChanged, string(storage.KeyFeaturesConfig), map[string]string{
		"operation": operationReset,
	}))
	return true
}

// Reload adopts the stored document after another process changed it.
// A pending local write wins and is flushed instead.
func (store *Store) Reload(ctx context.Context) {
	if store.slot.Dirty() {
		store.slot.Read(ctx)
		store.logger.Debug("feature_flags_reload_skipped_dirty")
		return
	}
	loaded := store.slot.Read(ctx).Normalize()
	store.mutex.Lock()
	store.current = loaded
	store.mutex.Unlock()
}

// PendingWrite reports whether the last mutation has not reached the store.
func (store *Store) PendingWrite() bool {
	return store.slot.Dirty()
}

func (store *Store) mutateFlag(ctx context.Context, operation string, name model.FlagName, next func(bool) bool) bool {
	if !model.IsKnownFlag(name) {
		metrics.ObserveFlagMutation(operation, resultUnknownFlag)
		store.logger.Info("feature_flag_unknown", zap.String("operation", operation), zap.String("flag", string(name)))
		return false
	}
	var enabled bool
	store.apply(ctx, func(flagSet *model.FeatureFlagSet) error {
		enabled = next(flagSet.Flags[name])
		flagSet.Flags[name] = enabled
		return nil
	})
	metrics.ObserveFlagMutation(operation, resultApplied)
	store.logger.Info("feature_flag_changed", zap.String("flag", string(name)), zap.Bool("enabled", enabled))
	store.publisher.Publish(signals.New(signals.TypeFeatureFlagChanged, string(name), map[string]string{
		"operation": operation,
		"enabled":   strconv.FormatBool(enabled),
	}))
	return true
}

func (store *Store) apply(ctx context.Context, mutate func(*model.FeatureFlagSet) error) model.FeatureFlagSet {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	updated, err := store.slot.Update(ctx, func(flagSet *model.FeatureFlagSet) error {
		*flagSet = flagSet.Normalize()
		if err := mutate(flagSet); err != nil {
			return err
		}
		flagSet.LastUpdated = store.clock()
		return nil
	})
	if err != nil {
		return store.current.Clone()
	}
	store.current = updated.Normalize()
	return store.current.Clone()
}
