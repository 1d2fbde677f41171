package validation

import (
	"sort"
	"strings"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns v as an error, or nil when there is nothing to report.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

// Error renders the violations as "field: code" pairs in field order.
func (v Violations) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + v[f]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Basic validators. The first violation recorded for a field wins.
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "required")
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v.add(field, "must_be_positive")
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v.add(field, "must_not_be_negative")
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v.add(field, "must_be_positive")
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v.add(field, "out_of_range")
	}
}

// OneOf records "invalid_choice" when value is not among choices.
func OneOf(field, value string, choices []string, v Violations) {
	for _, c := range choices {
		if value == c {
			return
		}
	}
	v.add(field, "invalid_choice")
}

func (v Violations) add(field, code string) {
	if _, exists := v[field]; !exists {
		v[field] = code
	}
}
