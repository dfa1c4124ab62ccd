package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docent.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFiles_Defaults(t *testing.T) {
	config, err := LoadFromFiles(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 0.15, config.Retrieval.MinScore)
	assert.Equal(t, 6, config.Chat.HistoryWindow)
	assert.Equal(t, 1000, config.Processing.MaxChunkChars)
}

func TestLoadFromFiles_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, "[server]\nport = 9090\n\n[retrieval]\nmin_score = 0.3\n")

	config, err := LoadFromFiles(nil, path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 0.3, config.Retrieval.MinScore)
}

func TestLoadFromFiles_RejectsInvalidSchedule(t *testing.T) {
	path := writeConfigFile(t, "[processing]\nschedule = \"every ten minutes\"\n")

	_, err := LoadFromFiles(nil, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid processing schedule")
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 */10 * * * *"))
	assert.Error(t, ValidateSchedule("not a schedule"))
	assert.Error(t, ValidateSchedule("* * * * *")) // five fields, seconds required
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", true},
		{"PROD", true},
		{" Production ", true},
		{"development", false},
		{"", false},
	}

	for _, tt := range tests {
		config := &Config{Environment: tt.environment}
		assert.Equal(t, tt.expected, config.IsProduction(), tt.environment)
	}
}
