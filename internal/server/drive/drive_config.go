package drive

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

type Config struct {
	// Exclusions are gitignore-style lines applied to every sync.
	Exclusions []string `mapstructure:"exclusions"`
	// RulesFile is an optional YAML file with additional rules.
	RulesFile         string        `mapstructure:"rules_file"`
	DetectRenames     bool          `mapstructure:"detect_renames"`
	MetadataCacheSize int           `mapstructure:"metadata_cache_size"`
	MetadataCacheTTL  time.Duration `mapstructure:"metadata_cache_ttl"`
	UploadTTL         time.Duration `mapstructure:"upload_ttl"`
}

func DefaultConfig() Config {
	return Config{
		DetectRenames:     true,
		MetadataCacheSize: 4096,
		MetadataCacheTTL:  30 * time.Second,
		UploadTTL:         time.Hour,
	}
}

func (c *Config) Validate() error {
	if c.MetadataCacheSize < 0 {
		return fmt.Errorf("sync `metadata_cache_size` must not be negative")
	}
	if c.UploadTTL < 0 {
		return fmt.Errorf("sync `upload_ttl` must not be negative")
	}
	for _, line := range c.Exclusions {
		if !doublestar.ValidatePattern(line) {
			return fmt.Errorf("sync exclusion %q is not a valid pattern", line)
		}
	}
	return nil
}
