package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineConfig is the root structure for a pipeline definition.
type PipelineConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// MaxConcurrency is the default bound for parallel stages (0 = unlimited).
	MaxConcurrency int `yaml:"max_concurrency"`

	Stages []StageRef `yaml:"stages"`
}

// StageRef is a single stage entry: either a plain name or name + options.
// In YAML, a stage can be written as:
//   - fetch
//   - name: summarize
//     parallel: true
//     max_concurrency: 4
//     instrument: true
//   - name: join
//     checkpoint_if: too_long
type StageRef struct {
	Name string `yaml:"name"`

	// As renames the stage in traces and errors.
	As string `yaml:"as"`

	// Instrument wraps the stage so it emits trace events and records metrics.
	Instrument bool `yaml:"instrument"`

	// Parallel runs the stage on every item of a list input concurrently.
	Parallel       bool `yaml:"parallel"`
	MaxConcurrency int  `yaml:"max_concurrency"`

	// ForEach runs the stage on every item of a list input in order.
	ForEach bool `yaml:"for_each"`

	// Batch feeds a list input to the stage in chunks of this size. The stage
	// itself receives and returns lists.
	Batch int `yaml:"batch"`

	// Timeout bounds the context deadline seen by the stage (e.g. "30s").
	Timeout Duration `yaml:"timeout"`

	// Checkpoint names a checkpoint that always pauses after the stage.
	Checkpoint string `yaml:"checkpoint"`

	// CheckpointIf names a registered predicate; the checkpoint after the
	// stage pauses only when it holds. The checkpoint is named after the
	// predicate unless Checkpoint is also set.
	CheckpointIf string `yaml:"checkpoint_if"`
}

// UnmarshalYAML allows a stage to be a string (stage name only) or a struct.
func (s *StageRef) UnmarshalYAML(value *yaml.Node) error {
	var nameOnly string
	if err := value.Decode(&nameOnly); err == nil {
		s.Name = nameOnly
		return nil
	}
	type raw StageRef
	return value.Decode((*raw)(s))
}

// DisplayName returns As when set, otherwise Name.
func (s StageRef) DisplayName() string {
	if s.As != "" {
		return s.As
	}
	return s.Name
}

// Duration is a time.Duration that unmarshals from YAML strings (e.g. "60s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// ParsePipelineConfig parses YAML bytes into a single PipelineConfig.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MultiPipelineConfig is the root structure for a file that defines several
// pipelines under a top-level "pipelines" key.
type MultiPipelineConfig struct {
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

// ParseMultiPipelineConfig parses YAML bytes that contain a "pipelines" map
// from name to pipeline config.
//
//	pipelines:
//	  digest:
//	    stages: [split, {name: summarize, parallel: true}, join]
//	  echo:
//	    stages: [identity]
func ParseMultiPipelineConfig(data []byte) (*MultiPipelineConfig, error) {
	var cfg MultiPipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a multi-pipeline file from disk.
func LoadFile(path string) (*MultiPipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	multi, err := ParseMultiPipelineConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return multi, nil
}
