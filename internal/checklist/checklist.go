// Package checklist implements the Checklist Catalog:
// a static, versioned description of the ten contract-risk analysis parts.
package checklist

import (
	"embed"
	"fmt"

	"contractrisk/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed parts.yaml
var embeddedParts embed.FS

// Catalog is the read-only, validated set of checklist parts, ordered by
// Number ascending.
type Catalog struct {
	parts []model.ChecklistPart
}

// Load reads and validates the embedded checklist definition: exactly ten
// parts, contiguously numbered 1..10, each with a non-empty deep-dive
// checklist.
func Load() (*Catalog, error) {
	data, err := embeddedParts.ReadFile("parts.yaml")
	if err != nil {
		return nil, fmt.Errorf("checklist: read embedded parts.yaml: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a checklist definition from raw YAML,
// exposed separately so callers (and tests) can supply an override path
// via the checklist_path configuration key.
func LoadBytes(data []byte) (*Catalog, error) {
	var doc struct {
		Parts []model.ChecklistPart `yaml:"parts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("checklist: parse: %w", err)
	}
	if err := validate(doc.Parts); err != nil {
		return nil, err
	}
	return &Catalog{parts: doc.Parts}, nil
}

func validate(parts []model.ChecklistPart) error {
	if len(parts) != 10 {
		return fmt.Errorf("checklist: expected 10 parts, got %d", len(parts))
	}
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		if p.Number < 1 || p.Number > 10 {
			return fmt.Errorf("checklist: part number %d out of range 1..10", p.Number)
		}
		if seen[p.Number] {
			return fmt.Errorf("checklist: duplicate part number %d", p.Number)
		}
		seen[p.Number] = true
		if len(p.DeepDiveChecklist) == 0 {
			return fmt.Errorf("checklist: part %d has an empty deep-dive checklist", p.Number)
		}
		if p.CoreQuestion == "" {
			return fmt.Errorf("checklist: part %d missing coreQuestion", p.Number)
		}
	}
	for n := 1; n <= 10; n++ {
		if !seen[n] {
			return fmt.Errorf("checklist: missing part number %d", n)
		}
	}
	return nil
}

// Parts returns all ten parts ordered by Number ascending.
func (c *Catalog) Parts() []model.ChecklistPart {
	out := make([]model.ChecklistPart, len(c.parts))
	copy(out, c.parts)
	return out
}

// Part looks up a single part by number.
func (c *Catalog) Part(number int) (model.ChecklistPart, bool) {
	for _, p := range c.parts {
		if p.Number == number {
			return p, true
		}
	}
	return model.ChecklistPart{}, false
}
