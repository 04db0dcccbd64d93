package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.4.0", "abc123def", "2026-08-30")

	t.Run("output", func(t *testing.T) {
		oldStdout := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		versionCmd.Run(versionCmd, []string{})

		w.Close()
		os.Stdout = oldStdout

		var buf bytes.Buffer
		_, err := buf.ReadFrom(r)
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "gridwatch")
		assert.Contains(t, output, "v1.4.0")
		assert.Contains(t, output, "abc123def")
		assert.Contains(t, output, "commit:")
		assert.Contains(t, output, "built:")
	})

	t.Run("properties", func(t *testing.T) {
		assert.Equal(t, "version", versionCmd.Use)
		assert.NotNil(t, versionCmd.Run)
	})
}
