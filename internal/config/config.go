package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"
)

type EncoderConfig struct {
	// MaxLen is the padded token window, special tokens included. Zero means
	// it is derived from the longest allowed epitope and CDR3b.
	MaxLen           int   `yaml:"max_len"`
	AddSpecialTokens *bool `yaml:"add_special_tokens"`
	PadTokenId       int64 `yaml:"pad_token_id"`
}

func (c EncoderConfig) SpecialTokens() bool {
	return c.AddSpecialTokens == nil || *c.AddSpecialTokens
}

// DataConfig is loaded once at startup and never modified afterwards.
type DataConfig struct {
	SampleCdr3bs   []string      `yaml:"sars2_cdr3b"`
	SampleEpitopes []string      `yaml:"sars2_epitope"`
	MaxCdr3b       int           `yaml:"max_cdr3b"`
	MaxNCdr3bs     int           `yaml:"max_n_cdr3bs"`
	EpitopeRange   [2]int        `yaml:"epitope_range"`
	Encoder        EncoderConfig `yaml:"encoder"`
}

func LoadDataConfig(path string) (*DataConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading data config %s: %w", path, err)
	}

	cfg, err := ParseDataConfig(data)
	if err != nil {
		return nil, fmt.Errorf("error loading data config %s: %w", path, err)
	}

	slog.Info("loaded data config", "path", path, "epitope_range", cfg.EpitopeRangeString(), "max_cdr3b", cfg.MaxCdr3b, "max_n_cdr3bs", cfg.MaxNCdr3bs, "max_len", cfg.Encoder.MaxLen)

	return cfg, nil
}

// ParseDataConfig accepts either JSON or YAML, since JSON documents are valid YAML.
func ParseDataConfig(data []byte) (*DataConfig, error) {
	var cfg DataConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing data config: %w", err)
	}

	if cfg.Encoder.MaxLen == 0 {
		cfg.Encoder.MaxLen = cfg.RequiredMaxLen()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// RequiredMaxLen is the number of tokens needed to encode the longest allowed pair.
func (c *DataConfig) RequiredMaxLen() int {
	n := c.EpitopeRange[1] + c.MaxCdr3b
	if c.Encoder.SpecialTokens() {
		n += 2
	}
	return n
}

func (c *DataConfig) Validate() error {
	if c.EpitopeRange[0] < 1 {
		return fmt.Errorf("epitope_range lower bound must be at least 1, got %d", c.EpitopeRange[0])
	}
	if c.EpitopeRange[0] > c.EpitopeRange[1] {
		return fmt.Errorf("invalid epitope_range %s", c.EpitopeRangeString())
	}
	if c.MaxCdr3b < 1 {
		return fmt.Errorf("max_cdr3b must be at least 1, got %d", c.MaxCdr3b)
	}
	if c.MaxNCdr3bs < 1 {
		return fmt.Errorf("max_n_cdr3bs must be at least 1, got %d", c.MaxNCdr3bs)
	}
	if required := c.RequiredMaxLen(); c.Encoder.MaxLen < required {
		return fmt.Errorf("encoder max_len %d is smaller than the %d tokens required by epitope_range and max_cdr3b", c.Encoder.MaxLen, required)
	}
	return nil
}

func (c *DataConfig) EpitopeRangeString() string {
	return fmt.Sprintf("%d-%d", c.EpitopeRange[0], c.EpitopeRange[1])
}

func (c *DataConfig) DefaultEpitope() string {
	if len(c.SampleEpitopes) == 0 {
		return ""
	}
	return c.SampleEpitopes[0]
}
