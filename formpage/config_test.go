package formpage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "formpage.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
	assert.True(t, config.Strict)
	assert.True(t, config.Rendezvous)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
port = 9000
strict = false
fallback_url = "http://localhost:9001"
queue_capacity = 4
poll_interval = "50ms"
`))
	require.NoError(t, err)
	assert.Equal(t, 9000, config.Port)
	assert.False(t, config.Strict)
	assert.True(t, config.Rendezvous)
	assert.Equal(t, "http://localhost:9001", config.FallbackURL)
	assert.Equal(t, 4, config.QueueCapacity)
	assert.Equal(t, time.Millisecond*50, config.PollInterval)
	assert.Equal(t, DefaultDerivations(), config.Derivations)
}

func TestLoadConfigDerivationsReplaceDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
[[derivation]]
call_path = "/coordinates/location"
field = "municipality"
expr = ".results[0].municipality"
`))
	require.NoError(t, err)
	assert.Equal(t, []Derivation{{CallPath: GeocodePath, Field: "municipality", Expr: ".results[0].municipality"}}, config.Derivations)
}

func TestLoadConfigRejectsUnknownSettings(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `prot = 9000`))
	assert.Error(t, err)
}

func TestLoadConfigRejectsIncompleteDerivation(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
[[derivation]]
field = "municipality"
`))
	assert.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveTimeouts(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `route_timeout = "0s"`))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `close_timeout = "-1s"`))
	assert.Error(t, err)
}
