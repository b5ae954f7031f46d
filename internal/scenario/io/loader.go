// Package io loads scenario catalogues from YAML documents.
package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/vetbox/internal/model"
)

// CatalogueYAMLRepository loads scenario catalogues from YAML files.
type CatalogueYAMLRepository struct {
	fs fs.FS
}

// NewCatalogueYAMLRepository creates a new YAML catalogue repository.
func NewCatalogueYAMLRepository(filesystem fs.FS) *CatalogueYAMLRepository {
	return &CatalogueYAMLRepository{fs: filesystem}
}

// GetCatalogue loads a scenario catalogue from a YAML file and returns the
// validated scenarios in declaration order.
func (r *CatalogueYAMLRepository) GetCatalogue(ctx context.Context, path string) ([]model.Scenario, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var doc Catalogue
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("catalogue has no scenarios")
	}

	scenarios := make([]model.Scenario, 0, len(doc.Scenarios))
	for i, sc := range doc.Scenarios {
		m := sc.toModel()
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("invalid scenario %d (%q): %w", i, sc.Description, err)
		}
		scenarios = append(scenarios, m)
	}

	return scenarios, nil
}

// Catalogue represents the YAML structure of a scenario catalogue document.
type Catalogue struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario represents the YAML structure of one catalogue entry.
type Scenario struct {
	Description string   `yaml:"description"`
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Expect      string   `yaml:"expect"`
}

func (s Scenario) toModel() model.Scenario {
	return model.Scenario{
		Description: s.Description,
		Request:     model.ExecRequest{Command: s.Command, Args: s.Args},
		Expected:    model.OutcomeCategory(s.Expect),
	}
}
