package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"order-forecast-api/pkg/models"

	"gopkg.in/yaml.v3"
)

// PipelineConfig はpipeline.yamlの構造を定義
type PipelineConfig struct {
	Forecast struct {
		HorizonDays   int     `yaml:"horizon_days"`
		IntervalWidth float64 `yaml:"interval_width"`
	} `yaml:"forecast"`

	Classifier struct {
		Trees     int     `yaml:"trees"`
		Seed      int64   `yaml:"seed"`
		TestRatio float64 `yaml:"test_ratio"`
	} `yaml:"classifier"`

	Fields models.FieldNames `yaml:"fields"`
}

// DefaultPipelineConfig returns the settings used when no file is present.
// The 30-day horizon is kept regardless of the month length.
func DefaultPipelineConfig() *PipelineConfig {
	cfg := &PipelineConfig{Fields: models.DefaultFieldNames()}
	cfg.Forecast.HorizonDays = 30
	cfg.Forecast.IntervalWidth = 0.80
	cfg.Classifier.Trees = 50
	cfg.Classifier.Seed = 42
	cfg.Classifier.TestRatio = 0.2
	return cfg
}

// LoadPipelineConfig はYAMLファイルからパイプライン設定を読み込む。
// ファイルが無い場合はデフォルト値を返す。
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}

	// unmarshalling over the defaults keeps keys the file omits
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *PipelineConfig) Validate() error {
	if c.Forecast.HorizonDays < 0 {
		return fmt.Errorf("forecast.horizon_days must be >= 0, got %d", c.Forecast.HorizonDays)
	}
	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.interval_width must be in (0,1), got %v", c.Forecast.IntervalWidth)
	}
	if c.Classifier.Trees < 1 {
		return fmt.Errorf("classifier.trees must be >= 1, got %d", c.Classifier.Trees)
	}
	if c.Classifier.TestRatio < 0 || c.Classifier.TestRatio >= 1 {
		return fmt.Errorf("classifier.test_ratio must be in [0,1), got %v", c.Classifier.TestRatio)
	}
	return nil
}
