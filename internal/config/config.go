// Package config loads riskgraph settings from an optional YAML file and
// the process environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"riskgraph/internal/decision"
	"riskgraph/internal/orchestrate"
	"riskgraph/internal/reasoning"
	"riskgraph/internal/signal"
	"riskgraph/internal/store"
)

type Config struct {
	ListenAddr string         `yaml:"listen_addr"`
	AWS        AWSConfig      `yaml:"aws"`
	Search     SearchConfig   `yaml:"search"`
	Pipeline   PipelineConfig `yaml:"pipeline"`
	Gateway    GatewayConfig  `yaml:"gateway"`
	DBPath     string         `yaml:"db_path"`
	// PolicyCorpus is a YAML policy file used to recover identifiers the
	// knowledge base omits. Empty means the embedded corpus.
	PolicyCorpus string    `yaml:"policy_corpus"`
	Log          LogConfig `yaml:"log"`
}

type AWSConfig struct {
	Region          string `yaml:"region"`
	KnowledgeBaseID string `yaml:"knowledge_base_id"`
	ModelID         string `yaml:"model_id"`
	MaxTokens       int32  `yaml:"max_tokens"`
}

type SearchConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	AllowedDomains []string      `yaml:"allowed_domains"`
	Timeout        time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	AmountMultiplier    float64       `yaml:"amount_multiplier"`
	RunTimeout          time.Duration `yaml:"run_timeout"`
	MaxResults          int           `yaml:"max_results"`
	MaxParallel         int           `yaml:"max_parallel"`
	PromptDir           string        `yaml:"prompt_dir"`
}

// GatewayConfig points the fallback gateway at a remote pipeline. An empty
// PrimaryURL runs the pipeline in-process.
type GatewayConfig struct {
	PrimaryURL string        `yaml:"primary_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when neither file nor environment
// provides a value.
func Default() Config {
	return Config{
		ListenAddr: ":8000",
		AWS: AWSConfig{
			Region:    "us-east-1",
			ModelID:   reasoning.DefaultModelID,
			MaxTokens: reasoning.DefaultMaxTokens,
		},
		Search: SearchConfig{Timeout: 10 * time.Second},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: decision.DefaultThreshold,
			AmountMultiplier:    signal.DefaultAmountMultiplier,
			RunTimeout:          orchestrate.DefaultRunTimeout,
			MaxResults:          orchestrate.DefaultMaxResults,
		},
		Gateway: GatewayConfig{Timeout: 90 * time.Second},
		DBPath:  store.DefaultDBPath,
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result. ${VAR} references in the file are
// expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 -- path is operator-provided config path.
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		expanded := os.ExpandEnv(string(raw))
		expanded = strings.ReplaceAll(expanded, "\r\n", "\n")
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("RISKGRAPH_LISTEN_ADDR", &c.ListenAddr)
	str("AWS_REGION", &c.AWS.Region)
	str("BEDROCK_KB_ID", &c.AWS.KnowledgeBaseID)
	str("BEDROCK_MODEL_ID", &c.AWS.ModelID)
	str("TAVILY_API_KEY", &c.Search.APIKey)
	str("TAVILY_BASE_URL", &c.Search.BaseURL)
	str("RISKGRAPH_DB_PATH", &c.DBPath)
	str("RISKGRAPH_POLICY_CORPUS", &c.PolicyCorpus)
	str("RISKGRAPH_PROMPT_DIR", &c.Pipeline.PromptDir)
	str("RISKGRAPH_PRIMARY_URL", &c.Gateway.PrimaryURL)
	str("RISKGRAPH_LOG_LEVEL", &c.Log.Level)
	str("RISKGRAPH_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("RISKGRAPH_ALLOWED_DOMAINS"); ok && v != "" {
		c.Search.AllowedDomains = splitList(v)
	}
	if err := float("RISKGRAPH_CONFIDENCE_THRESHOLD", &c.Pipeline.ConfidenceThreshold); err != nil {
		return err
	}
	if err := float("RISKGRAPH_AMOUNT_MULTIPLIER", &c.Pipeline.AmountMultiplier); err != nil {
		return err
	}
	return duration("RISKGRAPH_RUN_TIMEOUT", &c.Pipeline.RunTimeout)
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.confidence_threshold must be within [0,1], got %v", c.Pipeline.ConfidenceThreshold)
	}
	if c.Pipeline.AmountMultiplier <= 0 {
		return fmt.Errorf("pipeline.amount_multiplier must be positive, got %v", c.Pipeline.AmountMultiplier)
	}
	if c.Pipeline.RunTimeout <= 0 {
		return fmt.Errorf("pipeline.run_timeout must be positive")
	}
	if c.Pipeline.MaxResults < 1 {
		return fmt.Errorf("pipeline.max_results must be at least 1")
	}
	if c.Pipeline.MaxParallel < 0 {
		return fmt.Errorf("pipeline.max_parallel must not be negative")
	}
	if c.AWS.Region == "" {
		return fmt.Errorf("aws.region is required")
	}
	if c.AWS.MaxTokens < 0 {
		return fmt.Errorf("aws.max_tokens must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
