package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quantaverse/client/internal/persist"
	"quantaverse/client/internal/telemetry"
)

func TestLastAccountReadsCachedCredentials(t *testing.T) {
	prefs, err := persist.Open(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	defer prefs.Close()

	logger := telemetry.LoggerFunc(func(string, ...any) {})

	username, displayName := lastAccount(prefs, logger)
	require.Empty(t, username)
	require.Empty(t, displayName)

	require.NoError(t, prefs.Set(persist.KeyLastUsername, "ada"))
	require.NoError(t, prefs.Set(persist.KeyLastDisplayName, "Ada L"))

	username, displayName = lastAccount(prefs, logger)
	require.Equal(t, "ada", username)
	require.Equal(t, "Ada L", displayName)
}
