package tools

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// ParamError reports a missing or malformed command parameter. It is raised
// before the store is consulted.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	if e.Param == "" {
		return e.Reason
	}
	return fmt.Sprintf("parameter %q %s", e.Param, e.Reason)
}

func present(args map[string]any, key string) (any, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func optString(args map[string]any, key string) (string, bool, error) {
	v, ok := present(args, key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, &ParamError{Param: key, Reason: fmt.Sprintf("must be a string, got %T", v)}
	}
	return s, true, nil
}

func requireString(args map[string]any, key string) (string, error) {
	s, ok, err := optString(args, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ParamError{Param: key, Reason: "is required"}
	}
	return s, nil
}

// optInt accepts JSON numbers and numeric strings, rejecting fractions.
func optInt(args map[string]any, key string) (int, bool, error) {
	v, ok := present(args, key)
	if !ok {
		return 0, false, nil
	}
	if f, isFloat := v.(float64); isFloat && f != math.Trunc(f) {
		return 0, false, &ParamError{Param: key, Reason: fmt.Sprintf("must be an integer, got %v", f)}
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, false, &ParamError{Param: key, Reason: fmt.Sprintf("must be an integer, got %v", v)}
	}
	return n, true, nil
}

// optStrings accepts a JSON array of strings or a comma-separated string.
func optStrings(args map[string]any, key string) ([]string, bool, error) {
	v, ok := present(args, key)
	if !ok {
		return nil, false, nil
	}
	if s, isString := v.(string); isString {
		out := []string{}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true, nil
	}
	if items, isSlice := v.([]any); isSlice {
		for _, item := range items {
			if _, isString := item.(string); !isString {
				return nil, false, &ParamError{Param: key, Reason: fmt.Sprintf("must contain only strings, got %T", item)}
			}
		}
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, false, &ParamError{Param: key, Reason: "must be an array of strings"}
	}
	if out == nil {
		out = []string{}
	}
	return out, true, nil
}
