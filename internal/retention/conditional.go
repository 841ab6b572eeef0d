package retention

import (
	"reflect"
	"sort"

	"github.com/expr-lang/expr/vm"
)

type predicateKind uint8

const (
	predicateEquals predicateKind = iota + 1
	predicateCustom
	predicateExpr
)

// Predicate checks one payload field. It is either a literal comparison
// (Equals), a Go function (Custom) or a compiled expression (Expr).
type Predicate struct {
	kind    predicateKind
	literal any
	fn      func(value any) bool
	program *vm.Program
	source  string
}

// Equals matches when the field equals v. Numbers compare by value, so 3
// matches 3.0 after a JSON round trip.
func Equals(v any) Predicate {
	return Predicate{kind: predicateEquals, literal: v}
}

// Custom matches when fn returns true for the field value.
func Custom(fn func(value any) bool) Predicate {
	return Predicate{kind: predicateCustom, fn: fn}
}

// Match evaluates the predicate against a field value. data is the whole
// payload, made available to expressions. Failures of any kind are a
// non-match.
func (p Predicate) Match(value any, data map[string]any) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	switch p.kind {
	case predicateEquals:
		return valuesEqual(value, p.literal)
	case predicateCustom:
		return p.fn != nil && p.fn(value)
	case predicateExpr:
		return p.evalExpr(value, data)
	default:
		return false
	}
}

func valuesEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// Conditional keeps a candidate when any named predicate matches the
// corresponding payload field.
type Conditional struct {
	names      []string
	conditions map[string]Predicate
}

// Whenever builds a conditional policy from named predicates.
func Whenever(conditions map[string]Predicate) *Conditional {
	names := make([]string, 0, len(conditions))
	copied := make(map[string]Predicate, len(conditions))
	for name, p := range conditions {
		names = append(names, name)
		copied[name] = p
	}
	sort.Strings(names)
	return &Conditional{names: names, conditions: copied}
}

// WheneverEquals is Whenever with literal predicates.
func WheneverEquals(values map[string]any) *Conditional {
	conditions := make(map[string]Predicate, len(values))
	for name, v := range values {
		conditions[name] = Equals(v)
	}
	return Whenever(conditions)
}

func (p *Conditional) IncludeNext(entry *Entry, _ []Entry) bool {
	data := entry.Data
	for _, name := range p.names {
		if p.conditions[name].Match(data[name], data) {
			return true
		}
	}
	return false
}

func (p *Conditional) Cull([]Entry) SerialSet { return nil }
