package models

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldSelect, FieldNumber, FieldDate:
		return true
	}
	return false
}

type FieldValidation struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
}

type FormField struct {
	ID           string           `json:"id" yaml:"id"`
	Label        string           `json:"label" yaml:"label"`
	Type         FieldType        `json:"type" yaml:"type"`
	Required     bool             `json:"required,omitempty" yaml:"required,omitempty"`
	Options      []string         `json:"options,omitempty" yaml:"options,omitempty"`
	DefaultValue any              `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Validation   *FieldValidation `json:"validation,omitempty" yaml:"validation,omitempty"`
}

type DepartmentFeature struct {
	ID                string      `json:"id" yaml:"id"`
	Name              string      `json:"name" yaml:"name"`
	Description       string      `json:"description" yaml:"description"`
	Icon              string      `json:"icon" yaml:"icon"`
	FormFields        []FormField `json:"formFields,omitempty" yaml:"formFields,omitempty"`
	NotifyDepartments []string    `json:"notifyDepartments,omitempty" yaml:"notifyDepartments,omitempty"`
}

type Department struct {
	ID       string              `json:"id" yaml:"id"`
	Name     string              `json:"name" yaml:"name"`
	Icon     string              `json:"icon" yaml:"icon"`
	Color    string              `json:"color" yaml:"color"`
	Features []DepartmentFeature `json:"features" yaml:"features"`
}
