package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Kind selects the parser and constraint set for a field.
type Kind int

const (
	KindText Kind = iota
	KindEmail
	KindNumeric
	KindInteger
	KindDate
	KindPassword
	KindURL
	KindFilename
)

// TextConstraints bound plain text fields.
type TextConstraints struct {
	MinLength    int
	MaxLength    int
	AllowedChars *regexp.Regexp
}

// NumericConstraints bound floating-point fields. Bounds are inclusive;
// nil means unbounded on that side.
type NumericConstraints struct {
	Min *float64
	Max *float64
}

// IntegerConstraints bound integer fields. Bounds are inclusive.
type IntegerConstraints struct {
	Min *int64
	Max *int64
}

// DateConstraints parse date fields. Layout defaults to "2006-01-02".
type DateConstraints struct {
	Layout    string
	NotBefore time.Time
	NotAfter  time.Time
}

// PasswordConstraints set the complexity floor. MinLength defaults to 8;
// the upper/lower/digit/symbol classes and the common-weak list are always
// enforced.
type PasswordConstraints struct {
	MinLength int
	MaxLength int
}

// URLConstraints restrict url fields. Schemes defaults to http/https.
type URLConstraints struct {
	Schemes []string
}

// Rule describes one field. Exactly the constraint struct matching Kind is
// consulted; the rest are ignored.
type Rule struct {
	Kind     Kind
	Required bool

	Text     *TextConstraints
	Numeric  *NumericConstraints
	Integer  *IntegerConstraints
	Date     *DateConstraints
	Password *PasswordConstraints
	URL      *URLConstraints
}

// Schema maps field name to rule.
type Schema map[string]Rule

// fieldNames returns schema fields in deterministic order so error lists
// are stable across runs.
func (s Schema) fieldNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldError scopes one validation failure to its field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors accumulates every failed field in one pass.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(parts, "; ")
}

// ByField groups messages per field for envelope serialization.
func (e FieldErrors) ByField() map[string][]string {
	out := make(map[string][]string, len(e))
	for _, fe := range e {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// Values holds successfully parsed fields, keyed by field name.
type Values map[string]any

// String returns a validated string field ("" when absent).
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Float returns a validated numeric field.
func (v Values) Float(name string) (float64, bool) {
	f, ok := v[name].(float64)
	return f, ok
}

// Int returns a validated integer field.
func (v Values) Int(name string) (int64, bool) {
	i, ok := v[name].(int64)
	return i, ok
}

// Time returns a validated date field.
func (v Values) Time(name string) (time.Time, bool) {
	t, ok := v[name].(time.Time)
	return t, ok
}
