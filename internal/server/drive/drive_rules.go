package drive

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is the content of a rules file:
//
//	exclude:
//	  - "*.tmp"
//	  - "build/"
//	detect_renames: false
type Rules struct {
	Exclude       []string `yaml:"exclude"`
	DetectRenames *bool    `yaml:"detect_renames"`
}

// ParseRulesYAML parses a rules file from a reader. An empty document yields empty rules.
func ParseRulesYAML(r io.Reader) (*Rules, error) {
	var rules Rules
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return &rules, nil
}

func loadRules(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return ParseRulesYAML(f)
}

// apply merges the rules into a copy of cfg.
func (r *Rules) apply(cfg Config) Config {
	cfg.Exclusions = append(append([]string{}, cfg.Exclusions...), r.Exclude...)
	if r.DetectRenames != nil {
		cfg.DetectRenames = *r.DetectRenames
	}
	return cfg
}
