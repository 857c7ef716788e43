package localstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"moneymanager/internal/core"
)

// SeedCategory is one default category written for a new local user.
type SeedCategory struct {
	Name  string    `yaml:"name"`
	Type  core.Kind `yaml:"type"`
	Color string    `yaml:"color,omitempty"`
}

type seedFile struct {
	Categories []SeedCategory `yaml:"categories"`
}

// DefaultSeeds are used when no seed file is configured.
func DefaultSeeds() []SeedCategory {
	return []SeedCategory{
		{Name: "Salary", Type: core.Income},
		{Name: "Freelance", Type: core.Income},
		{Name: "Investments", Type: core.Income},
		{Name: "Food", Type: core.Expense},
		{Name: "Rent", Type: core.Expense},
		{Name: "Transport", Type: core.Expense},
		{Name: "Utilities", Type: core.Expense},
		{Name: "Entertainment", Type: core.Expense},
	}
}

// LoadSeeds reads default categories from a YAML file:
//
//	categories:
//	  - name: Salary
//	    type: income
//	    color: "#10B981"
//
// Invalid entries and (name, type) duplicates are skipped.
func LoadSeeds(path string) ([]SeedCategory, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return dedupeSeeds(f.Categories), nil
}

func dedupeSeeds(in []SeedCategory) []SeedCategory {
	seen := map[string]struct{}{}
	out := make([]SeedCategory, 0, len(in))
	for _, sc := range in {
		sc.Name = strings.TrimSpace(sc.Name)
		if sc.Name == "" || !sc.Type.Valid() {
			continue
		}
		k := string(sc.Type) + "/" + strings.ToLower(sc.Name)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, sc)
	}
	// Preserve input order: colors fall back by position.
	return out
}
