// Package runner implements the Orchestrator capability (C10): the
// top-level driver composing the reuse gate, planner, executor, and
// learner into one request lifecycle, and the run-directory artifact
// layout spec.md §6.3 requires.
package runner

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the orchestrator's configuration surface (spec.md §6.4),
// resolved in three layers following the teacher's config idiom
// (`core/config.go`'s defaults-then-env pattern): built-in defaults,
// then environment variables, then functional Options (highest
// priority, for programmatic callers and tests).
type Config struct {
	PlannerMaxAttempts    int
	ProceduralEnabled     bool
	ProceduralTopK        int
	ReuseThreshold        float64
	RunsBaseDir           string
	EmbeddingDim          int
	NetworkTimeout        time.Duration
	ShellTimeout          time.Duration
	RequestDeadline       time.Duration
	WebSearchScholarlyMin int
}

// Option overrides a resolved Config field, taking priority over both
// defaults and environment variables.
type Option func(*Config)

func WithPlannerMaxAttempts(n int) Option {
	return func(c *Config) { c.PlannerMaxAttempts = n }
}

func WithProceduralEnabled(enabled bool) Option {
	return func(c *Config) { c.ProceduralEnabled = enabled }
}

func WithProceduralTopK(k int) Option {
	return func(c *Config) { c.ProceduralTopK = k }
}

func WithReuseThreshold(t float64) Option {
	return func(c *Config) { c.ReuseThreshold = t }
}

func WithRunsBaseDir(dir string) Option {
	return func(c *Config) { c.RunsBaseDir = dir }
}

func WithEmbeddingDim(d int) Option {
	return func(c *Config) { c.EmbeddingDim = d }
}

func WithRequestDeadline(d time.Duration) Option {
	return func(c *Config) { c.RequestDeadline = d }
}

func WithWebSearchScholarlyMin(n int) Option {
	return func(c *Config) { c.WebSearchScholarlyMin = n }
}

// NewConfig resolves defaults < environment < opts, per spec.md §6.4.
func NewConfig(opts ...Option) Config {
	cfg := Config{
		PlannerMaxAttempts:    3,
		ProceduralEnabled:     false,
		ProceduralTopK:        5,
		ReuseThreshold:        0.90,
		RunsBaseDir:           "runs",
		EmbeddingDim:          1024,
		NetworkTimeout:        30 * time.Second,
		ShellTimeout:          5 * time.Second,
		RequestDeadline:       600 * time.Second,
		WebSearchScholarlyMin: 5,
	}

	if v := envInt("PLANNER_MAX_ATTEMPTS"); v != nil {
		cfg.PlannerMaxAttempts = *v
	}
	if v := os.Getenv("M3_ENABLED"); v != "" {
		cfg.ProceduralEnabled = v == "1" || v == "true"
	}
	if v := envInt("PROCEDURAL_TOP_K"); v != nil {
		cfg.ProceduralTopK = *v
	}
	if v := envFloat("PROCEDURAL_REUSE_THRESHOLD"); v != nil {
		cfg.ReuseThreshold = *v
	}
	if v := os.Getenv("RUNS_BASE_DIR"); v != "" {
		cfg.RunsBaseDir = v
	}
	if v := envInt("EMBEDDING_DIM"); v != nil {
		cfg.EmbeddingDim = *v
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// fileConfig mirrors Config's spec.md §6.4 fields for optional YAML
// overrides, each left as a pointer so an absent key doesn't clobber
// an already-resolved default/env value.
type fileConfig struct {
	PlannerMaxAttempts    *int     `yaml:"planner_max_attempts"`
	ProceduralEnabled     *bool    `yaml:"procedural_enabled"`
	ProceduralTopK        *int     `yaml:"procedural_top_k"`
	ReuseThreshold        *float64 `yaml:"reuse_threshold"`
	RunsBaseDir           *string  `yaml:"runs_base_dir"`
	EmbeddingDim          *int     `yaml:"embedding_dim"`
	WebSearchScholarlyMin *int     `yaml:"web_search_scholarly_min"`
}

// LoadConfigFile reads a YAML config override file (the teacher's
// orchestration/workflow packages use gopkg.in/yaml.v3 for their plan
// and config loading; this is the equivalent for runner.Config) and
// returns an Option applying whatever keys are present. Intended to
// sit between the env-var layer and any programmatic Options passed
// to NewConfig, so a deployment can check in a config file without
// losing the "explicit Option wins" priority rule.
func LoadConfigFile(path string) (Option, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runner: read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("runner: parse config file %s: %w", path, err)
	}
	return func(c *Config) {
		if fc.PlannerMaxAttempts != nil {
			c.PlannerMaxAttempts = *fc.PlannerMaxAttempts
		}
		if fc.ProceduralEnabled != nil {
			c.ProceduralEnabled = *fc.ProceduralEnabled
		}
		if fc.ProceduralTopK != nil {
			c.ProceduralTopK = *fc.ProceduralTopK
		}
		if fc.ReuseThreshold != nil {
			c.ReuseThreshold = *fc.ReuseThreshold
		}
		if fc.RunsBaseDir != nil {
			c.RunsBaseDir = *fc.RunsBaseDir
		}
		if fc.EmbeddingDim != nil {
			c.EmbeddingDim = *fc.EmbeddingDim
		}
		if fc.WebSearchScholarlyMin != nil {
			c.WebSearchScholarlyMin = *fc.WebSearchScholarlyMin
		}
	}, nil
}

func envInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envFloat(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
