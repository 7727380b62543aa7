package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eveapm/regionwatch/internal/monitor"
)

// rulesFile is the on-disk shape of the rules YAML.
type rulesFile struct {
	Rules []monitor.Rule `yaml:"rules"`
}

// LoadRules reads the watch rules from a YAML file, validates each one and
// clamps thresholds into range. Order is preserved. A missing file yields an
// empty rule list.
func LoadRules(path string) ([]monitor.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules YAML: %w", err)
	}

	for i, rule := range file.Rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d validation failed: %w", i+1, err)
		}
		file.Rules[i].Threshold = rule.ClampThreshold()
	}

	return file.Rules, nil
}

// SaveRules writes the rules back to a YAML file in load order.
func SaveRules(path string, rules []monitor.Rule) error {
	data, err := yaml.Marshal(rulesFile{Rules: rules})
	if err != nil {
		return fmt.Errorf("failed to marshal rules YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write rules file %s: %w", path, err)
	}
	return nil
}
