package validate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDateLayout        = "2006-01-02"
	defaultPasswordMinLength = 8
	maxEmailLength           = 254
	maxFilenameLength        = 255
	maxPasswordLength        = 256
)

// Apply runs schema over input and returns the parsed values alongside
// every field failure. values contains entries only for fields that
// passed; errs is nil when everything did.
func Apply(schema Schema, input map[string]string) (Values, FieldErrors) {
	values := make(Values, len(schema))
	var errs FieldErrors

	for _, name := range schema.fieldNames() {
		rule := schema[name]
		raw, present := input[name]
		raw = strings.TrimSpace(raw)

		if raw == "" {
			if rule.Required {
				msg := "is required"
				if present {
					msg = "must not be empty"
				}
				errs = append(errs, FieldError{Field: name, Message: msg})
			}
			continue
		}

		value, ferr := applyRule(rule, raw)
		if ferr != "" {
			errs = append(errs, FieldError{Field: name, Message: ferr})
			continue
		}
		values[name] = value
	}

	return values, errs
}

func applyRule(rule Rule, raw string) (any, string) {
	switch rule.Kind {
	case KindText:
		return applyText(rule.Text, raw)
	case KindEmail:
		return applyEmail(raw)
	case KindNumeric:
		return applyNumeric(rule.Numeric, raw)
	case KindInteger:
		return applyInteger(rule.Integer, raw)
	case KindDate:
		return applyDate(rule.Date, raw)
	case KindPassword:
		return applyPassword(rule.Password, raw)
	case KindURL:
		return applyURL(rule.URL, raw)
	case KindFilename:
		return applyFilename(raw)
	default:
		return nil, "has an unknown field kind"
	}
}

func applyText(c *TextConstraints, raw string) (any, string) {
	if matchesInjectionSignature(raw) {
		return nil, "contains disallowed content"
	}
	if c != nil {
		if c.MinLength > 0 && len(raw) < c.MinLength {
			return nil, fmt.Sprintf("must be at least %d characters", c.MinLength)
		}
		if c.MaxLength > 0 && len(raw) > c.MaxLength {
			return nil, fmt.Sprintf("must be at most %d characters", c.MaxLength)
		}
		if c.AllowedChars != nil && !c.AllowedChars.MatchString(raw) {
			return nil, "contains invalid characters"
		}
	}
	return raw, ""
}

func applyEmail(raw string) (any, string) {
	if matchesInjectionSignature(raw) {
		return nil, "contains disallowed content"
	}
	if len(raw) > maxEmailLength {
		return nil, "is too long"
	}
	if !emailPattern.MatchString(raw) {
		return nil, "must be a valid email address"
	}
	return strings.ToLower(raw), ""
}

func applyNumeric(c *NumericConstraints, raw string) (any, string) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, "must be a number"
	}
	if c != nil {
		if c.Min != nil && f < *c.Min {
			return nil, fmt.Sprintf("must be at least %g", *c.Min)
		}
		if c.Max != nil && f > *c.Max {
			return nil, fmt.Sprintf("must be at most %g", *c.Max)
		}
	}
	return f, ""
}

func applyInteger(c *IntegerConstraints, raw string) (any, string) {
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, "must be a whole number"
	}
	if c != nil {
		if c.Min != nil && i < *c.Min {
			return nil, fmt.Sprintf("must be at least %d", *c.Min)
		}
		if c.Max != nil && i > *c.Max {
			return nil, fmt.Sprintf("must be at most %d", *c.Max)
		}
	}
	return i, ""
}

func applyDate(c *DateConstraints, raw string) (any, string) {
	layout := defaultDateLayout
	if c != nil && c.Layout != "" {
		layout = c.Layout
	}

	t, err := time.Parse(layout, raw)
	if err != nil {
		return nil, fmt.Sprintf("must be a date in %s format", layout)
	}
	if c != nil {
		if !c.NotBefore.IsZero() && t.Before(c.NotBefore) {
			return nil, "is too far in the past"
		}
		if !c.NotAfter.IsZero() && t.After(c.NotAfter) {
			return nil, "is too far in the future"
		}
	}
	return t, ""
}

func applyPassword(c *PasswordConstraints, raw string) (any, string) {
	minLen := defaultPasswordMinLength
	maxLen := maxPasswordLength
	if c != nil {
		if c.MinLength > 0 {
			minLen = c.MinLength
		}
		if c.MaxLength > 0 {
			maxLen = c.MaxLength
		}
	}

	if len(raw) < minLen {
		return nil, fmt.Sprintf("must be at least %d characters", minLen)
	}
	if len(raw) > maxLen {
		return nil, fmt.Sprintf("must be at most %d characters", maxLen)
	}
	if _, weak := commonWeakPasswords[strings.ToLower(raw)]; weak {
		return nil, "is too common"
	}
	if !passwordUpper.MatchString(raw) {
		return nil, "must contain an uppercase letter"
	}
	if !passwordLower.MatchString(raw) {
		return nil, "must contain a lowercase letter"
	}
	if !passwordDigit.MatchString(raw) {
		return nil, "must contain a digit"
	}
	if !passwordSymbol.MatchString(raw) {
		return nil, "must contain a symbol"
	}
	return raw, ""
}

func applyURL(c *URLConstraints, raw string) (any, string) {
	if matchesInjectionSignature(raw) {
		return nil, "contains disallowed content"
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return nil, "must be a valid URL"
	}

	schemes := []string{"http", "https"}
	if c != nil && len(c.Schemes) > 0 {
		schemes = c.Schemes
	}
	for _, s := range schemes {
		if strings.EqualFold(parsed.Scheme, s) {
			return raw, ""
		}
	}
	return nil, "has a disallowed scheme"
}

func applyFilename(raw string) (any, string) {
	if len(raw) > maxFilenameLength {
		return nil, "is too long"
	}
	if strings.Contains(raw, "..") ||
		strings.ContainsAny(raw, `/\`) ||
		strings.HasPrefix(raw, ".") {
		return nil, "must be a plain file name"
	}
	if !filenamePattern.MatchString(raw) {
		return nil, "contains invalid characters"
	}
	return raw, ""
}
