package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drip_campaign_bot/internal/domain/campaign"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30, c.StepCount())
	first, err := c.Step(0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "G1 "))
	last, err := c.Step(29)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(last, "G30 "))
	assert.False(t, strings.HasSuffix(last, "\n"))
	assert.NotEmpty(t, c.Welcome())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - one\n  - two\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.StepCount())
	assert.Equal(t, defaultWelcome, c.Welcome())

	_, err = c.Step(2)
	assert.ErrorIs(t, err, campaign.ErrStepOutOfRange)
	_, err = c.Step(-1)
	assert.ErrorIs(t, err, campaign.ErrStepOutOfRange)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "steps: [one"},
		{"empty step", "steps:\n  - one\n  - '  '\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
