package model

import (
	"sort"
	"time"
)

// FlagName identifies a feature toggle in the features configuration document.
type FlagName string

const (
	FlagIAAnalysis        FlagName = "ia_analysis"
	FlagAutoEmail         FlagName = "auto_email"
	FlagPhotoOptimization FlagName = "photo_optimization"
	FlagFormProcessing    FlagName = "form_processing"
	FlagPublicWebsite     FlagName = "public_website"
	FlagAutoAdvertising   FlagName = "auto_advertising"
	FlagSocialPosting     FlagName = "social_posting"
	FlagAnalyticsTracking FlagName = "analytics_tracking"
	FlagManualMode        FlagName = "manual_mode"
	FlagContactForms      FlagName = "contact_forms"
	FlagDataStorage       FlagName = "data_storage"

	DefaultFlagsConfiguredBy = "Cynthia Bernier - Lebel-sur-Quévillon"
)

var defaultFlagValues = map[FlagName]bool{
	FlagIAAnalysis:        false,
	FlagAutoEmail:         false,
	FlagPhotoOptimization: false,
	FlagFormProcessing:    true,
	FlagPublicWebsite:     false,
	FlagAutoAdvertising:   false,
	FlagSocialPosting:     false,
	FlagAnalyticsTracking: false,
	FlagManualMode:        true,
	FlagContactForms:      true,
	FlagDataStorage:       true,
}

var essentialFlags = map[FlagName]struct{}{
	FlagFormProcessing: {},
	FlagContactForms:   {},
	FlagDataStorage:    {},
	FlagManualMode:     {},
}

// FeatureFlagSet is the persisted feature toggle document.
type FeatureFlagSet struct {
	Flags        map[FlagName]bool `json:"flags"`
	LastUpdated  time.Time         `json:"last_updated"`
	ConfiguredBy string            `json:"configured_by"`
}

// KnownFlags lists every recognized flag name in a stable order.
func KnownFlags() []FlagName {
	names := make([]FlagName, 0, len(defaultFlagValues))
	for name := range defaultFlagValues {
		names = append(names, name)
	}
	sort.Slice(names, func(left, right int) bool { return names[left] < names[right] })
	return names
}

// EssentialFlags lists the flags that emergency mode keeps enabled.
func EssentialFlags() []FlagName {
	names := make([]FlagName, 0, len(essentialFlags))
	for name := range essentialFlags {
		names = append(names, name)
	}
	sort.Slice(names, func(left, right int) bool { return names[left] < names[right] })
	return names
}

// IsKnownFlag reports whether name belongs to the predeclared flag set.
func IsKnownFlag(name FlagName) bool {
	_, known := defaultFlagValues[name]
	return known
}

// IsEssentialFlag reports whether name survives emergency mode.
func IsEssentialFlag(name FlagName) bool {
	_, essential := essentialFlags[name]
	return essential
}

// DefaultFeatureFlagSet returns the compiled-in defaults stamped with updatedAt.
func DefaultFeatureFlagSet(updatedAt time.Time) FeatureFlagSet {
	flags := make(map[FlagName]bool, len(defaultFlagValues))
	for name, value := range defaultFlagValues {
		flags[name] = value
	}
	return FeatureFlagSet{
		Flags:        flags,
		LastUpdated:  updatedAt,
		ConfiguredBy: DefaultFlagsConfiguredBy,
	}
}

// Clone returns a deep copy so callers cannot mutate the owner's map.
func (set FeatureFlagSet) Clone() FeatureFlagSet {
	flags := make(map[FlagName]bool, len(set.Flags))
	for name, value := range set.Flags {
		flags[name] = value
	}
	set.Flags = flags
	return set
}

// Normalize drops unknown names and fills missing known names with defaults.
func (set FeatureFlagSet) Normalize() FeatureFlagSet {
	normalized := make(map[FlagName]bool, len(defaultFlagValues))
	for name, defaultValue := range defaultFlagValues {
		value, present := set.Flags[name]
		if !present {
			value = defaultValue
		}
		normalized[name] = value
	}
	set.Flags = normalized
	if set.ConfiguredBy == "" {
		set.ConfiguredBy = DefaultFlagsConfiguredBy
	}
	return set
}
