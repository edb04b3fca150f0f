// Package catalog holds the read-only department and feature catalog and
// validates record fields against each feature's form schema.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/models"
)

//go:embed departments.yaml
var defaultCatalog []byte

const dateLayout = "2006-01-02"

var notificationsFeature = models.DepartmentFeature{
	ID:          models.NotificationsFeature,
	Name:        "Notificações",
	Description: "Visualizar e gerenciar notificações do departamento",
	Icon:        "Bell",
}

type Catalog struct {
	departments []models.Department
	byID        map[string]int
	patterns    map[string]*regexp.Regexp
}

type file struct {
	Departments []models.Department `yaml:"departments"`
}

// Load reads the catalog from path, or the embedded default when path is
// empty, and checks its integrity.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes a catalog document. Every department gets the implicit
// notifications feature unless it declares one.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		departments: f.Departments,
		byID:        make(map[string]int, len(f.Departments)),
		patterns:    make(map[string]*regexp.Regexp),
	}
	for i := range c.departments {
		d := &c.departments[i]
		if _, ok := findFeature(*d, models.NotificationsFeature); !ok {
			d.Features = append(d.Features, notificationsFeature)
		}
		c.byID[d.ID] = i
	}
	return c, nil
}

// Validate checks unique ids, known field types, select options and that
// every notify target is another catalog department.
func (c *Catalog) Validate() error {
	if len(c.departments) == 0 {
		return fmt.Errorf("catalog has no departments")
	}
	seen := make(map[string]bool, len(c.departments))
	for _, d := range c.departments {
		if d.ID == "" {
			return fmt.Errorf("catalog: department without id")
		}
		// partition keys join department and feature with "-"
		if strings.ContainsAny(d.ID, "- ") {
			return fmt.Errorf("catalog: invalid department id %q", d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("catalog: duplicate department %q", d.ID)
		}
		seen[d.ID] = true
	}

	for _, d := range c.departments {
		features := make(map[string]bool, len(d.Features))
		for _, f := range d.Features {
			if f.ID == "" || strings.Contains(f.ID, " ") {
				return fmt.Errorf("catalog: %s: invalid feature id %q", d.ID, f.ID)
			}
			if features[f.ID] {
				return fmt.Errorf("catalog: %s: duplicate feature %q", d.ID, f.ID)
			}
			features[f.ID] = true

			for _, target := range f.NotifyDepartments {
				if !seen[target] {
					return fmt.Errorf("catalog: %s/%s notifies unknown department %q", d.ID, f.ID, target)
				}
				if target == d.ID {
					return fmt.Errorf("catalog: %s/%s notifies its own department", d.ID, f.ID)
				}
			}

			fields := make(map[string]bool, len(f.FormFields))
			for _, field := range f.FormFields {
				if fields[field.ID] {
					return fmt.Errorf("catalog: %s/%s: duplicate field %q", d.ID, f.ID, field.ID)
				}
				fields[field.ID] = true
				if !field.Type.Valid() {
					return fmt.Errorf("catalog: %s/%s/%s: unknown field type %q", d.ID, f.ID, field.ID, field.Type)
				}
				if field.Type == models.FieldSelect && len(field.Options) == 0 {
					return fmt.Errorf("catalog: %s/%s/%s: select without options", d.ID, f.ID, field.ID)
				}
				if v := field.Validation; v != nil && v.Pattern != "" {
					re, err := regexp.Compile(v.Pattern)
					if err != nil {
						return fmt.Errorf("catalog: %s/%s/%s: bad pattern: %w", d.ID, f.ID, field.ID, err)
					}
					c.patterns[patternKey(d.ID, f.ID, field.ID)] = re
				}
			}
		}
	}
	return nil
}

func (c *Catalog) Departments() []models.Department {
	return append([]models.Department(nil), c.departments...)
}

func (c *Catalog) Department(id string) (models.Department, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Department{}, false
	}
	return c.departments[i], true
}

func (c *Catalog) Feature(departmentID, featureID string) (models.DepartmentFeature, bool) {
	d, ok := c.Department(departmentID)
	if !ok {
		return models.DepartmentFeature{}, false
	}
	return findFeature(d, featureID)
}

func findFeature(d models.Department, featureID string) (models.DepartmentFeature, bool) {
	for _, f := range d.Features {
		if f.ID == featureID {
			return f, true
		}
	}
	return models.DepartmentFeature{}, false
}

// ValidateRecord checks fields against the feature's form schema. All
// problems are reported together in the error details, in form order.
func (c *Catalog) ValidateRecord(departmentID, featureID string, fields map[string]any) error {
	feature, ok := c.Feature(departmentID, featureID)
	if !ok {
		return apperr.NewNotFoundError("feature not found", departmentID+"/"+featureID)
	}

	known := make(map[string]bool, len(feature.FormFields))
	var problems []string
	for _, field := range feature.FormFields {
		known[field.ID] = true
		value, present := fields[field.ID]
		if !present || isBlank(value) {
			if field.Required {
				problems = append(problems, field.ID+": required")
			}
			continue
		}
		if msg := c.checkField(departmentID, featureID, field, value); msg != "" {
			problems = append(problems, field.ID+": "+msg)
		}
	}

	var unknown []string
	for id := range fields {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		for _, id := range unknown {
			problems = append(problems, id+": unknown field")
		}
	}

	if len(problems) > 0 {
		return apperr.NewSchemaMismatchError(
			fmt.Sprintf("record does not match the %s form", feature.Name),
			strings.Join(problems, "; "),
		)
	}
	return nil
}

func (c *Catalog) checkField(departmentID, featureID string, field models.FormField, value any) string {
	switch field.Type {
	case models.FieldNumber:
		n, ok := toNumber(value)
		if !ok {
			return "must be a number"
		}
		if v := field.Validation; v != nil {
			if (v.Min != nil && n < *v.Min) || (v.Max != nil && n > *v.Max) {
				return validationMessage(v, "out of range")
			}
		}
	case models.FieldSelect:
		s, ok := value.(string)
		if !ok || !slices.Contains(field.Options, s) {
			return "must be one of " + strings.Join(field.Options, ", ")
		}
	case models.FieldDate:
		s, ok := value.(string)
		if !ok {
			return "must be a date (YYYY-MM-DD)"
		}
		if _, err := time.Parse(dateLayout, s); err != nil {
			return "must be a date (YYYY-MM-DD)"
		}
	default:
		s, ok := value.(string)
		if !ok {
			return "must be text"
		}
		if re := c.patterns[patternKey(departmentID, featureID, field.ID)]; re != nil && !re.MatchString(s) {
			return validationMessage(field.Validation, "invalid format")
		}
	}
	return ""
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func validationMessage(v *models.FieldValidation, fallback string) string {
	if v != nil && v.Message != "" {
		return v.Message
	}
	return fallback
}

func patternKey(d, f, field string) string { return d + "/" + f + "/" + field }
