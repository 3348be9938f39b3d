package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("TEST_ENV_STRING", "value")
	t.Setenv("TEST_ENV_INT", "42")
	t.Setenv("TEST_ENV_BOOL", "true")
	t.Setenv("TEST_ENV_DURATION", "90s")

	assert.Equal(t, "value", GetString("TEST_ENV_STRING", "default"))
	assert.Equal(t, "default", GetString("TEST_ENV_MISSING", "default"))
	assert.Equal(t, 42, GetInt("TEST_ENV_INT", 0))
	assert.True(t, GetBool("TEST_ENV_BOOL", false))
	assert.Equal(t, 90*time.Second, GetDuration("TEST_ENV_DURATION", time.Second))
	assert.Equal(t, time.Second, GetDuration("TEST_ENV_MISSING", time.Second))
}

func TestGetIntPanicsOnGarbage(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "many")
	assert.Panics(t, func() { GetInt("TEST_ENV_INT", 0) })
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_ENV_FROM_FILE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEST_ENV_FROM_FILE") })

	require.NoError(t, Load(path))
	assert.Equal(t, "loaded", GetString("TEST_ENV_FROM_FILE", ""))
}
