package memory

import "strconv"

// Filter is a metadata predicate evaluated against a document's metadata.
// The grammar mirrors what vector databases expose: field equality, set
// membership, numeric less-than, and conjunction.
type Filter struct {
	op       filterOp
	field    string
	value    string
	values   []string
	numeric  int64
	children []*Filter
}

type filterOp int

const (
	opEq filterOp = iota
	opIn
	opNotIn
	opLt
	opAnd
)

// Eq matches documents whose field equals value.
func Eq(field, value string) *Filter {
	return &Filter{op: opEq, field: field, value: value}
}

// In matches documents whose field is one of values.
func In(field string, values ...string) *Filter {
	return &Filter{op: opIn, field: field, values: values}
}

// NotIn matches documents whose field is none of values.
func NotIn(field string, values ...string) *Filter {
	return &Filter{op: opNotIn, field: field, values: values}
}

// Lt matches documents whose field, parsed as a base-10 integer, is strictly
// less than value. Documents with a missing or non-numeric field never match.
func Lt(field string, value int64) *Filter {
	return &Filter{op: opLt, field: field, numeric: value}
}

// And matches documents satisfying every child filter. Nil children are
// ignored; And() with no effective children matches everything.
func And(filters ...*Filter) *Filter {
	var children []*Filter
	for _, f := range filters {
		if f != nil {
			children = append(children, f)
		}
	}
	if len(children) == 1 {
		return children[0]
	}
	return &Filter{op: opAnd, children: children}
}

// Matches evaluates the filter against metadata. A nil filter matches
// everything.
func (f *Filter) Matches(meta map[string]string) bool {
	if f == nil {
		return true
	}
	switch f.op {
	case opEq:
		return meta[f.field] == f.value
	case opIn:
		for _, v := range f.values {
			if meta[f.field] == v {
				return true
			}
		}
		return false
	case opNotIn:
		for _, v := range f.values {
			if meta[f.field] == v {
				return false
			}
		}
		return true
	case opLt:
		raw, ok := meta[f.field]
		if !ok {
			return false
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return false
		}
		return n < f.numeric
	case opAnd:
		for _, c := range f.children {
			if !c.Matches(meta) {
				return false
			}
		}
		return true
	}
	return false
}

// Equalities returns the plain field=value constraints reachable without
// passing through In/NotIn/Lt. Adapters whose backend only supports equality
// filters push these down and evaluate the rest client-side.
func (f *Filter) Equalities() map[string]string {
	eq := make(map[string]string)
	f.collectEqualities(eq)
	return eq
}

func (f *Filter) collectEqualities(into map[string]string) {
	if f == nil {
		return
	}
	switch f.op {
	case opEq:
		into[f.field] = f.value
	case opAnd:
		for _, c := range f.children {
			c.collectEqualities(into)
		}
	}
}
