package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := write(t, `
driver: sensehat
spi:
  serpentine: true
i2c:
  bus: "1"
knocker:
  mode: both
  threaded_ms: 2000
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "sensehat", c.Driver)
	assert.Equal(t, "1", c.I2C.Bus)
	assert.True(t, c.SPI.Serpentine)
	assert.Equal(t, uint16(0x46), c.I2C.Addr)
	assert.Equal(t, "both", c.Knocker.Mode)
	assert.Equal(t, 2*time.Second, c.Knocker.ThreadedInterval())
	assert.Equal(t, 2*time.Second, c.Knocker.CooperativeInterval())
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"driver":   "driver: laser\n",
		"mode":     "knocker:\n  mode: sometimes\n",
		"interval": "knocker:\n  cooperative_ms: 0\n",
		"buffer":   "frame_buffer: -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(write(t, "driver: [\n"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
