// Package yaml serves the read-only label taxonomy from an embedded YAML
// table.
package yaml

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/ports"
	yamlv3 "gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTable []byte

type tableSchema struct {
	Categories []categorySchema `yaml:"categories"`
}

type categorySchema struct {
	Name     string        `yaml:"name"`
	Template string        `yaml:"template"`
	Labels   []labelSchema `yaml:"labels"`
}

type labelSchema struct {
	Text     string `yaml:"text"`
	Alias    string `yaml:"alias"`
	Quadrant string `yaml:"quadrant"`
}

type Source struct {
	categories []domain.TaxonomyCategory
	byName     map[string]int
}

var _ ports.TaxonomySource = (*Source)(nil)

// New returns the built-in taxonomy table.
func New() (*Source, error) {
	return Parse(defaultTable)
}

func Parse(data []byte) (*Source, error) {
	var table tableSchema
	if err := yamlv3.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}

	s := &Source{byName: make(map[string]int, len(table.Categories))}
	for _, entry := range table.Categories {
		category, err := toCategory(entry)
		if err != nil {
			return nil, err
		}
		if _, ok := s.byName[category.Name]; ok {
			return nil, fmt.Errorf("taxonomy category %q declared twice", category.Name)
		}
		s.byName[category.Name] = len(s.categories)
		s.categories = append(s.categories, category)
	}

	return s, nil
}

func (s *Source) Categories(ctx context.Context) ([]domain.TaxonomyCategory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.TaxonomyCategory, 0, len(s.categories))
	for _, category := range s.categories {
		out = append(out, cloneCategory(category))
	}
	return out, nil
}

func (s *Source) Category(ctx context.Context, name string) (domain.TaxonomyCategory, error) {
	if err := ctx.Err(); err != nil {
		return domain.TaxonomyCategory{}, err
	}

	idx, ok := s.byName[name]
	if !ok {
		return domain.TaxonomyCategory{}, fmt.Errorf("taxonomy category %q: %w", name, domain.ErrNotFound)
	}
	return cloneCategory(s.categories[idx]), nil
}

func toCategory(entry categorySchema) (domain.TaxonomyCategory, error) {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return domain.TaxonomyCategory{}, fmt.Errorf("taxonomy category name is required")
	}
	if strings.Count(entry.Template, "%s") != 1 || strings.Count(entry.Template, "%") != 1 {
		return domain.TaxonomyCategory{}, fmt.Errorf("taxonomy category %q: template needs exactly one %%s", name)
	}

	category := domain.TaxonomyCategory{Name: name, Template: entry.Template, Labels: make([]domain.TaxonomyLabel, 0, len(entry.Labels))}
	aliases := map[string]struct{}{}
	for _, label := range entry.Labels {
		if label.Text == "" || label.Alias == "" {
			return domain.TaxonomyCategory{}, fmt.Errorf("taxonomy category %q: label text and alias are required", name)
		}
		if _, ok := aliases[label.Alias]; ok {
			return domain.TaxonomyCategory{}, fmt.Errorf("taxonomy category %q: alias %q declared twice", name, label.Alias)
		}
		aliases[label.Alias] = struct{}{}
		category.Labels = append(category.Labels, domain.TaxonomyLabel{
			Text:     label.Text,
			Alias:    label.Alias,
			Quadrant: label.Quadrant,
		})
	}

	return category, nil
}

func cloneCategory(category domain.TaxonomyCategory) domain.TaxonomyCategory {
	category.Labels = append([]domain.TaxonomyLabel(nil), category.Labels...)
	return category
}
