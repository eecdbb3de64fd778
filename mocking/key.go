package mocking

import (
	"net/url"
	"sort"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Key identifies a mockable call by its target path and optional structured query.
//
// Two keys are equal only if the paths are identical and the queries are deep-equal. A null
// query means "no query", and it only matches calls that also have no query.
type Key struct {
	Path  string
	Query ldvalue.Value
}

// NewKey creates a Key. Pass ldvalue.Null() for a call without a query.
//
// The query is normalized to the shape a call's query has after it went through a URL, so
// {"limit":10} and {"limit":"10"} make the same key.
func NewKey(path string, query ldvalue.Value) Key {
	return Key{Path: path, Query: NormalizeQuery(query)}
}

// NormalizeQuery converts numbers and booleans in a query to strings, as QueryFromURL would
// produce them. A query that is not an object, or has no properties, becomes null.
func NormalizeQuery(query ldvalue.Value) ldvalue.Value {
	if query.IsNull() {
		return query
	}
	return QueryFromURL(QueryToURL(query))
}

// PathKey creates a Key with no query.
func PathKey(path string) Key {
	return Key{Path: path, Query: ldvalue.Null()}
}

// HasQuery returns true if the key carries a query.
func (k Key) HasQuery() bool {
	return !k.Query.IsNull()
}

// Equal compares two keys structurally.
func (k Key) Equal(other Key) bool {
	return k.Path == other.Path && k.Query.Equal(other.Query)
}

// String returns a description of the key for log and error messages. It is not used for
// identity, since JSON property order is not stable.
func (k Key) String() string {
	if !k.HasQuery() {
		return k.Path
	}
	return k.Path + " " + k.Query.JSONString()
}

// QueryFromURL converts URL query parameters into a structured query: an object whose
// properties are strings, or arrays of strings for repeated parameters. An empty query
// string produces a null value.
func QueryFromURL(values url.Values) ldvalue.Value {
	if len(values) == 0 {
		return ldvalue.Null()
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	b := ldvalue.ObjectBuild()
	for _, name := range names {
		vs := values[name]
		if len(vs) == 1 {
			b.Set(name, ldvalue.String(vs[0]))
			continue
		}
		items := make([]ldvalue.Value, 0, len(vs))
		for _, v := range vs {
			items = append(items, ldvalue.String(v))
		}
		b.Set(name, ldvalue.ArrayOf(items...))
	}
	return b.Build()
}

// QueryToURL is the inverse of QueryFromURL for queries made of strings, numbers, booleans
// and arrays of those. Anything else is encoded as JSON text.
func QueryToURL(query ldvalue.Value) url.Values {
	values := make(url.Values)
	if query.Type() != ldvalue.ObjectType {
		return values
	}
	for _, name := range query.Keys() {
		v := query.GetByKey(name)
		if v.Type() == ldvalue.ArrayType {
			for i := 0; i < v.Count(); i++ {
				values.Add(name, scalarText(v.GetByIndex(i)))
			}
			continue
		}
		values.Set(name, scalarText(v))
	}
	return values
}

func scalarText(v ldvalue.Value) string {
	if v.Type() == ldvalue.StringType {
		return v.StringValue()
	}
	return v.JSONString()
}
