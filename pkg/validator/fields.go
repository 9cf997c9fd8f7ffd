package validator

import (
	"fmt"
	"reflect"
	"time"
)

// Custom field types
const (
	FieldText        = "text"
	FieldNumber      = "number"
	FieldDate        = "date"
	FieldSelect      = "select"
	FieldMultiselect = "multiselect"
	FieldBoolean     = "boolean"
)

// FieldDefinition is the subset of a custom field needed to check a value
type FieldDefinition struct {
	Name     string
	Type     string
	Required bool
	Options  []string
}

// ValidateFieldValue checks value against the field definition
func ValidateFieldValue(def FieldDefinition, value interface{}) error {
	if isEmptyValue(value) {
		if def.Required {
			return fmt.Errorf("Field %s is required", def.Name)
		}
		return nil
	}
	return GetRegistry().Validate("field:"+def.Type, value, map[string]interface{}{
		"name":    def.Name,
		"options": def.Options,
	})
}

func (r *Registry) registerFieldTypes() {
	r.Register("field:"+FieldText, func(value interface{}, config map[string]interface{}) error {
		if _, ok := value.(string); !ok {
			return fmt.Errorf("Expected string for %s", config["name"])
		}
		return nil
	})

	r.Register("field:"+FieldNumber, func(value interface{}, config map[string]interface{}) error {
		if !isNumber(value) {
			return fmt.Errorf("Invalid type for %s, expected number", config["name"])
		}
		return nil
	})

	r.Register("field:"+FieldBoolean, func(value interface{}, config map[string]interface{}) error {
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("Invalid type for %s, expected boolean", config["name"])
		}
		return nil
	})

	r.Register("field:"+FieldDate, func(value interface{}, config map[string]interface{}) error {
		if isNumber(value) {
			return nil
		}
		if s, ok := value.(string); ok && parseDate(s) {
			return nil
		}
		return fmt.Errorf("Invalid date format for %s", config["name"])
	})

	r.Register("field:"+FieldSelect, func(value interface{}, config map[string]interface{}) error {
		options, _ := config["options"].([]string)
		s, ok := value.(string)
		if !ok || !contains(options, s) {
			return fmt.Errorf("Invalid option for %s", config["name"])
		}
		return nil
	})

	r.Register("field:"+FieldMultiselect, func(value interface{}, config map[string]interface{}) error {
		options, _ := config["options"].([]string)
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fmt.Errorf("Expected array for multiselect %s", config["name"])
		}
		for i := 0; i < rv.Len(); i++ {
			item := fmt.Sprint(rv.Index(i).Interface())
			if !contains(options, item) {
				return fmt.Errorf("Invalid option '%s' for %s", item, config["name"])
			}
		}
		return nil
	})
}

// ValidFieldType reports whether t is a known custom field type
func ValidFieldType(t string) bool {
	switch t {
	case FieldText, FieldNumber, FieldDate, FieldSelect, FieldMultiselect, FieldBoolean:
		return true
	}
	return false
}

func isEmptyValue(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len() == 0
	}
	return false
}

func isNumber(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

var dateLayouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02", "2006-01-02 15:04:05", "02/01/2006"}

func parseDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
