// Package content loads the campaign step texts from YAML.
package content

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"drip_campaign_bot/internal/domain/campaign"

	yaml "go.yaml.in/yaml/v3"
)

//go:embed steps.yaml
var defaultSteps []byte

const defaultWelcome = "Welcome! You will now receive daily messages."

type file struct {
	Welcome string   `yaml:"welcome"`
	Steps   []string `yaml:"steps"`
}

// Campaign is an immutable, indexed list of step texts.
type Campaign struct {
	welcome string
	steps   []string
}

var _ campaign.Content = (*Campaign)(nil)

// Load reads the campaign from path, or the embedded default when path is empty.
func Load(path string) (*Campaign, error) {
	if path == "" {
		return Parse(defaultSteps)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("content file %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Campaign, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	for i, s := range f.Steps {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("step %d is empty", i)
		}
	}
	if f.Welcome == "" {
		f.Welcome = defaultWelcome
	}
	return &Campaign{welcome: f.Welcome, steps: f.Steps}, nil
}

func (c *Campaign) StepCount() int {
	return len(c.steps)
}

func (c *Campaign) Step(index int) (string, error) {
	if index < 0 || index >= len(c.steps) {
		return "", fmt.Errorf("%w: %d of %d", campaign.ErrStepOutOfRange, index, len(c.steps))
	}
	return c.steps[index], nil
}

// Welcome is the reply sent when a subscriber enrolls.
func (c *Campaign) Welcome() string {
	return c.welcome
}
