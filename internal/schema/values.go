package schema

import (
	"encoding/json"
	"strings"
	"time"
)

type number struct {
	value   float64
	integer bool
}

// toNumber reports the numeric value of v. Strings are never numbers; a
// json.Number is an integer only when it carries no fraction or exponent.
func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{float64(n), true}, true
	case int8:
		return number{float64(n), true}, true
	case int16:
		return number{float64(n), true}, true
	case int32:
		return number{float64(n), true}, true
	case int64:
		return number{float64(n), true}, true
	case uint:
		return number{float64(n), true}, true
	case uint8:
		return number{float64(n), true}, true
	case uint16:
		return number{float64(n), true}, true
	case uint32:
		return number{float64(n), true}, true
	case uint64:
		return number{float64(n), true}, true
	case float32:
		return number{float64(n), false}, true
	case float64:
		return number{n, false}, true
	case json.Number:
		s := n.String()
		f, err := n.Float64()
		if err != nil {
			return number{}, false
		}
		return number{f, !strings.ContainsAny(s, ".eE")}, true
	default:
		return number{}, false
	}
}

// isMissing implements the mandatory-field policy: nil, the empty string,
// numeric zero and false all count as missing.
func isMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	}
	if n, ok := toNumber(v); ok {
		return n.value == 0
	}
	return false
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

func isDate(v any, layout string) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := time.Parse(layout, s)
	return err == nil
}
