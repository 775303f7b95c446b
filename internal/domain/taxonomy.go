package domain

import "fmt"

type TaxonomyLabel struct {
	Text     string
	Alias    string
	Quadrant string
}

type TaxonomyCategory struct {
	Name     string
	Template string
	Labels   []TaxonomyLabel
}

// Sentence fills the category template with a label's text.
func (c TaxonomyCategory) Sentence(label TaxonomyLabel) string {
	return fmt.Sprintf(c.Template, label.Text)
}

func (c TaxonomyCategory) LabelByAlias(alias string) (TaxonomyLabel, bool) {
	for _, label := range c.Labels {
		if label.Alias == alias {
			return label, true
		}
	}
	return TaxonomyLabel{}, false
}
