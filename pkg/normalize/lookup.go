package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
)

// first returns the first candidate path holding a non-null value
func first(doc gjson.Result, paths []string) (gjson.Result, bool) {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.Type != gjson.Null {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// lookupString reads a scalar as text; objects and arrays do not count
func lookupString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := doc.Get(p)
		switch v.Type {
		case gjson.String, gjson.Number, gjson.True, gjson.False:
			return v.String()
		}
	}
	return ""
}

// lookupBool reads a JSON boolean or a "true"/"false" string
func lookupBool(doc gjson.Result, paths ...string) bool {
	v, ok := first(doc, paths)
	if !ok {
		return false
	}
	switch v.Type {
	case gjson.True:
		return true
	case gjson.String:
		return strings.EqualFold(strings.TrimSpace(v.Str), "true")
	default:
		return false
	}
}

// lookupStrings reads an array of scalars; non-scalar elements are skipped.
// The result is never nil.
func lookupStrings(doc gjson.Result, paths ...string) []string {
	out := []string{}
	for _, p := range paths {
		v := doc.Get(p)
		if !v.IsArray() {
			continue
		}
		for _, elem := range v.Array() {
			switch elem.Type {
			case gjson.String, gjson.Number, gjson.True, gjson.False:
				out = append(out, elem.String())
			}
		}
		return out
	}
	return out
}
