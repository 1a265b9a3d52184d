package configtest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type nestedConfig struct {
	Dir     string `yaml:"dir,omitempty"`
	Timeout int    `yaml:"timeout"`
}

type StageConfig struct {
	Layout   string        `yaml:"layout,omitempty"`
	Capacity int           `yaml:"max_grid_capacity"`
	Enabled  bool          `yaml:"enabled"`
	Raw      string        `yaml:"raw" config:"allowempty"`
	Ignored  string        `yaml:"-"`
	Nested   *nestedConfig `yaml:"nested,omitempty"`
	Again    string        `yaml:"layout,omitempty"`
}

type RecordingConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

func TestCheckYAMLTags(t *testing.T) {
	err := CheckYAMLTags(StageConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "StageConfig: stage.max_grid_capacity missing omitempty tag")
	require.Contains(t, err.Error(), "StageConfig: stage.nested.timeout missing omitempty tag")
	require.Contains(t, err.Error(), "StageConfig: stage.layout used by both Layout and Again")
	require.NotContains(t, err.Error(), "enabled")
	require.NotContains(t, err.Error(), "raw")
	require.NotContains(t, err.Error(), "Ignored")

	require.NoError(t, CheckYAMLTags(RecordingConfig{}))
	require.NoError(t, CheckYAMLTags(&RecordingConfig{}))
}
