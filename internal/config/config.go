// Package config provides configuration loading for wikid.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (GENERATION_CONTENT_MODEL, PROVIDER_BASE_URL, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/wikid/internal/logging"
)

// Config holds the complete wikid configuration.
type Config struct {
	Provider   ProviderConfig   `koanf:"provider"`
	Generation GenerationConfig `koanf:"generation"`
	Store      StoreConfig      `koanf:"store"`
	Logging    *logging.Config  `koanf:"logging"`
}

// ProviderConfig holds model provider connection settings. Any
// OpenAI-compatible endpoint works.
type ProviderConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// GenerationConfig holds the orchestration tuning knobs.
type GenerationConfig struct {
	CatalogModel     string `koanf:"catalog_model"`
	ContentModel     string `koanf:"content_model"`
	TranslationModel string `koanf:"translation_model"`

	MaxOutputTokens  int `koanf:"max_output_tokens"`
	MaxRetryAttempts int `koanf:"max_retry_attempts"`

	// RetryDelayMs is the backoff base; actual delays grow exponentially
	// with jitter and are capped at 60s.
	RetryDelayMs int `koanf:"retry_delay_ms"`

	// ParallelCount caps simultaneous in-flight agent calls. Each call is
	// a multi-turn tool-using session, so the default stays single-digit.
	ParallelCount int `koanf:"parallel_count"`

	DocumentGenerationTimeoutMinutes int `koanf:"document_generation_timeout_minutes"`
	TranslationTimeoutMinutes        int `koanf:"translation_timeout_minutes"`
	TitleTranslationTimeoutMinutes   int `koanf:"title_translation_timeout_minutes"`

	ReadmeMaxLength       int `koanf:"readme_max_length"`
	DirectoryTreeMaxDepth int `koanf:"directory_tree_max_depth"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the sqlite database file. Empty selects the in-memory store.
	Path string `koanf:"path"`
}

// RetryDelay returns the backoff base as a duration.
func (g *GenerationConfig) RetryDelay() time.Duration {
	return time.Duration(g.RetryDelayMs) * time.Millisecond
}

// DocumentTimeout returns the per-document generation timeout.
func (g *GenerationConfig) DocumentTimeout() time.Duration {
	return time.Duration(g.DocumentGenerationTimeoutMinutes) * time.Minute
}

// TranslationTimeout returns the per-document translation timeout.
func (g *GenerationConfig) TranslationTimeout() time.Duration {
	return time.Duration(g.TranslationTimeoutMinutes) * time.Minute
}

// TitleTimeout returns the per-title translation timeout.
func (g *GenerationConfig) TitleTimeout() time.Duration {
	return time.Duration(g.TitleTranslationTimeoutMinutes) * time.Minute
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.openai.com/v1"
	}

	g := &cfg.Generation
	if g.CatalogModel == "" {
		g.CatalogModel = "gpt-4o"
	}
	if g.ContentModel == "" {
		g.ContentModel = "gpt-4o"
	}
	if g.TranslationModel == "" {
		g.TranslationModel = "gpt-4o-mini"
	}
	if g.MaxOutputTokens == 0 {
		g.MaxOutputTokens = 8192
	}
	if g.MaxRetryAttempts == 0 {
		g.MaxRetryAttempts = 3
	}
	if g.RetryDelayMs == 0 {
		g.RetryDelayMs = 1000
	}
	if g.ParallelCount == 0 {
		g.ParallelCount = 4
	}
	if g.DocumentGenerationTimeoutMinutes == 0 {
		g.DocumentGenerationTimeoutMinutes = 10
	}
	if g.TranslationTimeoutMinutes == 0 {
		g.TranslationTimeoutMinutes = 5
	}
	if g.TitleTranslationTimeoutMinutes == 0 {
		g.TitleTranslationTimeoutMinutes = 1
	}
	if g.ReadmeMaxLength == 0 {
		g.ReadmeMaxLength = 4000
	}
	if g.DirectoryTreeMaxDepth == 0 {
		g.DirectoryTreeMaxDepth = 4
	}

	if cfg.Logging == nil {
		cfg.Logging = logging.NewDefaultConfig()
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return errors.New("provider base_url is required")
	}

	g := &c.Generation
	if g.MaxRetryAttempts < 1 {
		return fmt.Errorf("max_retry_attempts must be >= 1, got %d", g.MaxRetryAttempts)
	}
	if g.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must be >= 0, got %d", g.RetryDelayMs)
	}
	if g.ParallelCount < 1 {
		return fmt.Errorf("parallel_count must be >= 1, got %d", g.ParallelCount)
	}
	if g.MaxOutputTokens < 1 {
		return fmt.Errorf("max_output_tokens must be >= 1, got %d", g.MaxOutputTokens)
	}
	if g.DocumentGenerationTimeoutMinutes < 1 {
		return fmt.Errorf("document_generation_timeout_minutes must be >= 1, got %d", g.DocumentGenerationTimeoutMinutes)
	}
	if g.TranslationTimeoutMinutes < 1 {
		return fmt.Errorf("translation_timeout_minutes must be >= 1, got %d", g.TranslationTimeoutMinutes)
	}
	if g.TitleTranslationTimeoutMinutes < 1 {
		return fmt.Errorf("title_translation_timeout_minutes must be >= 1, got %d", g.TitleTranslationTimeoutMinutes)
	}
	if g.DirectoryTreeMaxDepth < 1 {
		return fmt.Errorf("directory_tree_max_depth must be >= 1, got %d", g.DirectoryTreeMaxDepth)
	}
	if g.ReadmeMaxLength < 1 {
		return fmt.Errorf("readme_max_length must be >= 1, got %d", g.ReadmeMaxLength)
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}
	return nil
}
