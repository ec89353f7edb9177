package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the top-level structure of strategies.yaml.
type ConfigFile struct {
	Strategies []Record `yaml:"strategies"`
}

// LoadConfig reads strategy records from a YAML file and checks that each
// one builds.
func LoadConfig(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, rec := range file.Strategies {
		if rec.ID == "" {
			return nil, fmt.Errorf("strategy %d in %s has no id", i, path)
		}
		if _, err := Build(rec); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", rec.ID, err)
		}
	}
	return file.Strategies, nil
}

// MarketFile is the structure of a market snapshot file.
type MarketFile struct {
	States []MarketState `yaml:"market"`
}

// LoadMarketStates reads market snapshots from a YAML file.
func LoadMarketStates(path string) ([]MarketState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file MarketFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.States, nil
}
