package normalize

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/platinummonkey/pfcatalog/pkg/refcache"
)

// ListSeparator joins list fields in tabular output
const ListSeparator = ", "

// Resolver names a reference ID, returning the ID unchanged when it cannot
type Resolver interface {
	Resolve(kind refcache.Kind, id string) string
}

// rule extracts one output field of T and reads it back for tabular output
type rule[T any] struct {
	field string
	apply func(doc gjson.Result, r Resolver, out *T)
	cell  func(out *T) interface{}
}

func text[T any](field string, dst func(*T) *string, paths ...string) rule[T] {
	return rule[T]{
		field: field,
		apply: func(doc gjson.Result, _ Resolver, out *T) { *dst(out) = lookupString(doc, paths...) },
		cell:  func(out *T) interface{} { return *dst(out) },
	}
}

func flag[T any](field string, dst func(*T) *bool, paths ...string) rule[T] {
	return rule[T]{
		field: field,
		apply: func(doc gjson.Result, _ Resolver, out *T) { *dst(out) = lookupBool(doc, paths...) },
		cell:  func(out *T) interface{} { return *dst(out) },
	}
}

func list[T any](field string, dst func(*T) *[]string, paths ...string) rule[T] {
	return rule[T]{
		field: field,
		apply: func(doc gjson.Result, _ Resolver, out *T) { *dst(out) = lookupStrings(doc, paths...) },
		cell:  func(out *T) interface{} { return strings.Join(*dst(out), ListSeparator) },
	}
}

func ref[T any](field string, kind refcache.Kind, dst func(*T) *string, paths ...string) rule[T] {
	return rule[T]{
		field: field,
		apply: func(doc gjson.Result, r Resolver, out *T) {
			id := lookupString(doc, paths...)
			if r != nil {
				id = r.Resolve(kind, id)
			}
			*dst(out) = id
		},
		cell: func(out *T) interface{} { return *dst(out) },
	}
}

// normalize applies rules to record in order. Invalid JSON behaves like an
// empty object.
func normalize[T any](record []byte, r Resolver, rules []rule[T]) T {
	var out T
	doc := gjson.ParseBytes(record)
	if !gjson.ValidBytes(record) {
		doc = gjson.Result{}
	}
	for _, rl := range rules {
		rl.apply(doc, r, &out)
	}
	return out
}

func fields[T any](rules []rule[T]) []string {
	out := make([]string, len(rules))
	for i, rl := range rules {
		out[i] = rl.field
	}
	return out
}

func cells[T any](v *T, rules []rule[T]) []interface{} {
	out := make([]interface{}, len(rules))
	for i, rl := range rules {
		out[i] = rl.cell(v)
	}
	return out
}
