package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand(t *testing.T) {
	t.Run("renders effective config", func(t *testing.T) {
		viper.Reset()
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "gridwatch.yaml")
		err := os.WriteFile(path, []byte("log:\n  level: debug\ndiagnostics:\n  enabled: true\n"), 0o600)
		require.NoError(t, err)

		cfgFile = path
		defer func() { cfgFile = "" }()

		var buf bytes.Buffer
		configCmd.SetOut(&buf)
		defer configCmd.SetOut(nil)

		err = runConfig(configCmd, nil)
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "# config file: "+path)
		assert.Contains(t, output, "level: debug")
		assert.Contains(t, output, "enabled: true")
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		viper.Reset()
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "gridwatch.yaml")
		err := os.WriteFile(path, []byte("diagnostics:\n  max_rolled_file_count: -1\n"), 0o600)
		require.NoError(t, err)

		cfgFile = path
		defer func() { cfgFile = "" }()

		configCmd.SetOut(&bytes.Buffer{})
		defer configCmd.SetOut(nil)

		err = runConfig(configCmd, nil)
		assert.Error(t, err)
	})
}
