package spacetime

import "testing"

func TestSettingsFallbacks(t *testing.T) {
	cache := NewSettingsCache()

	if got := cache.Float(SettingCollectionRadius, 3.5); got != 3.5 {
		t.Fatalf("expected fallback 3.5, got %v", got)
	}
	if got := cache.Int(SettingOrbLifetimeMs, 60000); got != 60000 {
		t.Fatalf("expected fallback 60000, got %v", got)
	}
}

func TestSettingsApplyAndUpdate(t *testing.T) {
	cache := NewSettingsCache()

	cache.Apply(RowChange{
		Table: TableGameSettings,
		Op:    RowInsert,
		New:   GameSettingRow{Key: SettingWorldRadius, ValueType: "f32", Value: "250"},
	})
	if got := cache.Float(SettingWorldRadius, 0); got != 250 {
		t.Fatalf("expected 250, got %v", got)
	}

	cache.Apply(RowChange{
		Table: TableGameSettings,
		Op:    RowUpdate,
		Old:   GameSettingRow{Key: SettingWorldRadius, Value: "250"},
		New:   GameSettingRow{Key: SettingWorldRadius, Value: "500"},
	})
	if got := cache.Float(SettingWorldRadius, 0); got != 500 {
		t.Fatalf("expected 500 after update, got %v", got)
	}
}

func TestSettingsDeleteRestoresFallback(t *testing.T) {
	cache := NewSettingsCache()

	row := GameSettingRow{Key: SettingOrbLifetimeMs, ValueType: "u32", Value: "30000"}
	cache.Apply(RowChange{Table: TableGameSettings, Op: RowInsert, New: row})
	cache.Apply(RowChange{Table: TableGameSettings, Op: RowDelete, Old: row})

	if got := cache.Int(SettingOrbLifetimeMs, 60000); got != 60000 {
		t.Fatalf("expected fallback after delete, got %v", got)
	}
}

func TestSettingsMalformedValueFallsBack(t *testing.T) {
	cache := NewSettingsCache()
	cache.Apply(RowChange{
		Table: TableGameSettings,
		Op:    RowInsert,
		New:   GameSettingRow{Key: SettingCollectionRadius, Value: "not-a-number"},
	})
	if got := cache.Float(SettingCollectionRadius, 2); got != 2 {
		t.Fatalf("expected fallback for malformed value, got %v", got)
	}
}
