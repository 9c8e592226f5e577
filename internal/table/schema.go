package table

import (
	"fmt"
	"strings"
)

// ColumnSpec declares one expected column of a source.
type ColumnSpec struct {
	Name     string `yaml:"name" validate:"required"`
	Kind     Kind   `yaml:"kind"`
	Required bool   `yaml:"required"`
}

// Schema declares the expected shape of a loaded table. Columns not
// listed in the schema are loaded as strings.
type Schema struct {
	Columns []ColumnSpec `yaml:"columns" validate:"dive"`
}

// Spec looks a column declaration up by (normalized) name.
func (s Schema) Spec(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// MissingRequired returns the required column names absent from the
// given header set, in declaration order.
func (s Schema) MissingRequired(headers []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, c := range s.Columns {
		if !c.Required {
			continue
		}
		if _, ok := present[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// NormalizeName canonicalizes a source header: trimmed, lowercased,
// inner whitespace collapsed to single underscores.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}

// Validate checks the table against the schema: required columns must
// exist and declared kinds must match.
func (s Schema) Validate(t *Table) error {
	if missing := s.MissingRequired(t.ColumnNames()); len(missing) > 0 {
		return fmt.Errorf("required columns missing: %s", strings.Join(missing, ", "))
	}
	for _, spec := range s.Columns {
		c, ok := t.Column(spec.Name)
		if !ok {
			continue
		}
		if spec.Kind != "" && c.Kind != spec.Kind {
			return fmt.Errorf("column %q has kind %q, schema declares %q", spec.Name, c.Kind, spec.Kind)
		}
	}
	return nil
}
