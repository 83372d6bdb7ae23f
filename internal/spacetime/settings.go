package spacetime

import (
	"strconv"
	"sync"
)

// Setting keys published by the store.
const (
	SettingOrbLifetimeMs    = "orb_lifetime_ms"
	SettingCollectionRadius = "collection_radius"
	SettingWorldRadius      = "world_radius"
)

// SettingsCache mirrors the game_settings table. Rows are full snapshots, so
// apply simply replaces; defaults cover the window before the first batch.
type SettingsCache struct {
	mu     sync.RWMutex
	values map[string]GameSettingRow
}

func NewSettingsCache() *SettingsCache {
	return &SettingsCache{values: make(map[string]GameSettingRow)}
}

// Apply folds one game_settings row change into the cache.
func (s *SettingsCache) Apply(change RowChange) {
	row, ok := change.New.(GameSettingRow)
	if change.Op == RowDelete {
		row, ok = change.Old.(GameSettingRow)
	}
	if !ok || row.Key == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if change.Op == RowDelete {
		delete(s.values, row.Key)
		return
	}
	s.values[row.Key] = row
}

// Float returns the setting parsed as float64, or fallback when absent or
// malformed.
func (s *SettingsCache) Float(key string, fallback float64) float64 {
	s.mu.RLock()
	row, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return fallback
	}
	value, err := strconv.ParseFloat(row.Value, 64)
	if err != nil {
		return fallback
	}
	return value
}

// Int returns the setting parsed as int64, or fallback when absent or
// malformed.
func (s *SettingsCache) Int(key string, fallback int64) int64 {
	s.mu.RLock()
	row, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return fallback
	}
	value, err := strconv.ParseInt(row.Value, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}
