package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/avbstream/config"
	"github.com/opd-ai/avbstream/limits"
)

func noEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.env")
}

func TestLoadConfigFlags(t *testing.T) {
	cfg, err := loadConfig([]string{"-env", noEnv(t), "-i", "eth0", "-n", "4", "-log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "eth0", cfg.Interface)
	assert.Equal(t, 4, cfg.Streams)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:7500", cfg.MRPDAddr)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interface: enp1s0\nstreams: 2\ngain: 0.25\n"), 0o600))

	cfg, err := loadConfig([]string{"-env", noEnv(t), "-config", path, "-n", "3"})
	require.NoError(t, err)
	assert.Equal(t, "enp1s0", cfg.Interface)
	assert.Equal(t, 3, cfg.Streams)
	assert.Equal(t, 0.25, cfg.Gain, "unset flag keeps the file value")
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing interface", []string{}, config.ErrMissingInterface},
		{"stream count", []string{"-i", "eth0", "-n", "0"}, limits.ErrStreamCountInvalid},
		{"unicast destination", []string{"-i", "eth0", "-d", "00:11:22:33:44:55"}, config.ErrInvalidDestination},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(append([]string{"-env", noEnv(t)}, tt.args...))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseCLIFlagsUnknown(t *testing.T) {
	_, _, err := parseCLIFlags([]string{"-bogus"})
	assert.Error(t, err)
}
