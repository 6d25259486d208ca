package sut

import (
	"fmt"
	"slices"
)

// field rules for the validation route: each source must carry exactly one
// string key named after itself
var validationRules = []struct {
	source string
	key    string
}{
	{"params", "param"},
	{"query", "query"},
	{"payload", "payload"},
	{"state", "state"},
}

// validateRequest checks params, query, payload and cookies in that order
// and reports the first failure
func validateRequest(req *Request) error {
	for _, rule := range validationRules {
		values := sourceValues(req, rule.source)
		if err := validateObject(rule.source, rule.key, values); err != nil {
			return err
		}
	}
	return nil
}

func sourceValues(req *Request, source string) map[string]any {
	switch source {
	case "params":
		return stringMap(req.Params)
	case "query":
		return valuesMap(req.Query)
	case "payload":
		return req.Payload
	case "state":
		return stringMap(req.State)
	}
	return nil
}

func validateObject(source, key string, values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if k != key {
			return BadRequest(fmt.Sprintf("Invalid request %s input: %q is not allowed", source, k))
		}
	}

	v, ok := values[key]
	if !ok {
		return BadRequest(fmt.Sprintf("Invalid request %s input: %q is required", source, key))
	}
	if s, isString := v.(string); !isString || s == "" {
		return BadRequest(fmt.Sprintf("Invalid request %s input: %q must be a non-empty string", source, key))
	}
	return nil
}
