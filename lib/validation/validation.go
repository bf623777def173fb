// Package validation evaluates declarative per-field rules.
//
// Rules are written the way templates and forms usually spell them:
//
//	validation.Rules{
//	    "email":    "required|email",
//	    "password": "required|min:8|max:64",
//	}
//
// Check returns the failing fields as an Errors map. Only the first failing
// rule of a field is reported.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Errors maps a field name to its first error message.
type Errors map[string]string

// Ruleset is implemented by Rules and RuleList.
type Ruleset interface {
	// Fields returns each field's rules in evaluation order.
	Fields() map[string][]string
}

// Rules declares pipe-delimited rules per field ("required|min:3").
type Rules map[string]string

// Fields splits each rule string on '|'.
func (r Rules) Fields() map[string][]string {
	out := make(map[string][]string, len(r))
	for field, spec := range r {
		out[field] = strings.Split(spec, "|")
	}
	return out
}

// RuleList declares rules per field as an explicit list.
type RuleList map[string][]string

// Fields returns the lists unchanged.
func (r RuleList) Fields() map[string][]string {
	return r
}

// Error is returned when at least one field fails validation.
type Error struct {
	Fields Errors
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// emailPattern accepts the common local@domain.tld shape.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?)+$`)

// Check evaluates rules against values. A field missing from values is
// evaluated as nil. The result is empty when everything passes.
func Check(values map[string]any, rules Ruleset) Errors {
	errs := Errors{}
	for field, list := range rules.Fields() {
		value := values[field]
		for _, rule := range list {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}
			if msg, failed := apply(field, rule, value); failed {
				errs[field] = msg
				break
			}
		}
	}
	return errs
}

// Validate is Check returning an *Error when something failed.
func Validate(values map[string]any, rules Ruleset) error {
	if errs := Check(values, rules); len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

func apply(field, rule string, value any) (string, bool) {
	name, arg, _ := strings.Cut(rule, ":")
	switch name {
	case "required":
		if IsEmpty(value) {
			return fmt.Sprintf("The %s field is required.", field), true
		}
	case "email":
		s, ok := value.(string)
		if ok && s != "" && !emailPattern.MatchString(s) {
			return fmt.Sprintf("The %s field must be a valid email.", field), true
		}
	case "min":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "", false
		}
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) < n {
			return fmt.Sprintf("The %s field must be at least %d characters.", field, n), true
		}
	case "max":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "", false
		}
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) > n {
			return fmt.Sprintf("The %s field must not exceed %d characters.", field, n), true
		}
	}
	return "", false
}

// IsEmpty reports whether v counts as missing for the required rule:
// nil, the empty string, or an empty slice or map. Zero numbers and false
// are present values.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
