package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/avbstream/config"
	"github.com/opd-ai/avbstream/stream"
)

func noEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig([]string{"-env", noEnv(t), "-i", "eth0"})
	require.NoError(t, err)
	assert.Equal(t, "output", cfg.Output)
	assert.Len(t, cfg.Accepted, 2)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
}

func TestLoadConfigFlags(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig([]string{
		"-env", noEnv(t), "-i", "eth1", "-f", "take", "-dir", dir, "-monitor", "127.0.0.1:5004",
	})
	require.NoError(t, err)
	assert.Equal(t, "eth1", cfg.Interface)
	assert.Equal(t, "take", cfg.Output)
	assert.Equal(t, dir, cfg.OutputDir)
	assert.Equal(t, "127.0.0.1:5004", cfg.Monitor)
}

func TestLoadConfigAcceptedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listener.yaml")
	yaml := `interface: eth0
capacity: 1
accepted_streams:
  - id: "00:11:22:33:44:55:00:07"
    destination: "91:e0:f0:00:0e:90"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := loadConfig([]string{"-env", noEnv(t), "-config", path})
	require.NoError(t, err)
	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []stream.MAC{{0x91, 0xe0, 0xf0, 0x00, 0x0e, 0x90}}, reg.Destinations())
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing interface", []string{}, config.ErrMissingInterface},
		{"empty output", []string{"-i", "eth0", "-f", ""}, config.ErrMissingOutput},
		{"bad monitor", []string{"-i", "eth0", "-monitor", "nowhere"}, config.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(append([]string{"-env", noEnv(t)}, tt.args...))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSinkFactoryWAVOnly(t *testing.T) {
	cfg := config.DefaultListener()
	cfg.OutputDir = t.TempDir()

	f, err := sinkFactory(cfg)
	require.NoError(t, err)

	sink, err := f(&stream.Descriptor{Index: 1})
	require.NoError(t, err)
	require.NoError(t, sink.WriteSamples(make([]int32, 12)))
	require.NoError(t, sink.Close())
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "output_1.wav"))
}

func TestSinkFactoryWithMonitor(t *testing.T) {
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	cfg := config.DefaultListener()
	cfg.OutputDir = t.TempDir()
	cfg.Monitor = pc.LocalAddr().String()

	f, err := sinkFactory(cfg)
	require.NoError(t, err)

	sink, err := f(&stream.Descriptor{Index: 0})
	require.NoError(t, err)
	require.NoError(t, sink.WriteSamples(make([]int32, 12)))
	require.NoError(t, sink.Close())

	buf := make([]byte, 1500)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, 12+12*2, n, "RTP header plus 12 L16 samples")
}

func TestSinkFactoryBadMonitor(t *testing.T) {
	cfg := config.DefaultListener()
	cfg.Monitor = "127.0.0.1:rtp"
	_, err := sinkFactory(cfg)
	assert.Error(t, err)
}
