package services

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"frontdesk/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed seed_knowledge.yaml
var defaultSeedKnowledge []byte

// LoadSeedKnowledge parses the seed list from path, or the built-in list when
// path is empty.
func LoadSeedKnowledge(path string) ([]models.SeedEntry, error) {
	data := defaultSeedKnowledge
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed knowledge: %w", err)
		}
	}
	return ParseSeedKnowledge(data)
}

// ParseSeedKnowledge decodes a YAML seed list and validates every entry
func ParseSeedKnowledge(data []byte) ([]models.SeedEntry, error) {
	var seed models.SeedKnowledge
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed knowledge: %w", err)
	}

	for i, e := range seed.Entries {
		if len(SplitPatterns(e.Patterns)) == 0 {
			return nil, fmt.Errorf("seed entry %d has no usable patterns", i)
		}
		if strings.TrimSpace(e.Answer) == "" {
			return nil, fmt.Errorf("seed entry %d (%q) has no answer", i, e.Patterns)
		}
	}
	return seed.Entries, nil
}
