package retention

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Policy type names accepted by Spec.
const (
	TypeAll      = "all"
	TypeSerial   = "serial"
	TypeEvery    = "every"
	TypeThrottle = "throttle"
	TypeMinimum  = "minimum"
	TypeMaximum  = "maximum"
	TypeWhenever = "whenever"
	TypeAtMost   = "at_most"
	TypeAnd      = "and"
	TypeOr       = "or"
)

// ErrInvalidSpec is returned when a Spec cannot be turned into a policy.
var ErrInvalidSpec = errors.New("retention: invalid spec")

// Spec is a declarative description of a policy tree, suitable for
// configuration files.
//
//	retention:
//	  type: and
//	  policies:
//	    - type: every
//	      interval: 3
//	    - type: at_most
//	      max_entries: 5
type Spec struct {
	Type string `koanf:"type" json:"type" yaml:"type"`

	// serial
	Serials []uint64 `koanf:"serials" json:"serials,omitempty" yaml:"serials,omitempty"`

	// every
	Interval uint64 `koanf:"interval" json:"interval,omitempty" yaml:"interval,omitempty"`
	Offset   int64  `koanf:"offset" json:"offset,omitempty" yaml:"offset,omitempty"`

	// throttle
	Delta time.Duration `koanf:"delta" json:"delta,omitempty" yaml:"delta,omitempty"`

	// minimum, maximum
	Field string `koanf:"field" json:"field,omitempty" yaml:"field,omitempty"`

	// whenever
	Equals      map[string]any    `koanf:"equals" json:"equals,omitempty" yaml:"equals,omitempty"`
	Expressions map[string]string `koanf:"expressions" json:"expressions,omitempty" yaml:"expressions,omitempty"`

	// at_most
	MaxEntries int    `koanf:"max_entries" json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	Basis      string `koanf:"basis" json:"basis,omitempty" yaml:"basis,omitempty"`

	// and, or
	Policies []Spec `koanf:"policies" json:"policies,omitempty" yaml:"policies,omitempty"`
}

// Build turns the spec into a fresh policy tree. Every call returns new
// instances, so stateful policies start empty.
func (s Spec) Build() (Policy, error) {
	kind := strings.ToLower(strings.TrimSpace(s.Type))
	switch kind {
	case "", TypeAll:
		return All(), nil

	case TypeSerial:
		if len(s.Serials) == 0 {
			return nil, fmt.Errorf("%w: serial needs at least one serial", ErrInvalidSpec)
		}
		return Serial(s.Serials...), nil

	case TypeEvery:
		if s.Interval == 0 {
			return nil, fmt.Errorf("%w: every needs a positive interval", ErrInvalidSpec)
		}
		return EveryOffset(s.Interval, s.Offset), nil

	case TypeThrottle:
		if s.Delta < 0 {
			return nil, fmt.Errorf("%w: throttle delta must not be negative", ErrInvalidSpec)
		}
		return Throttle(s.Delta), nil

	case TypeMinimum, TypeMaximum:
		if s.Field == "" {
			return nil, fmt.Errorf("%w: %s needs a field", ErrInvalidSpec, kind)
		}
		if kind == TypeMinimum {
			return Minimum(s.Field), nil
		}
		return Maximum(s.Field), nil

	case TypeWhenever:
		return s.buildConditional()

	case TypeAtMost:
		if s.MaxEntries <= 0 {
			return nil, fmt.Errorf("%w: at_most needs a positive max_entries", ErrInvalidSpec)
		}
		basis := BasisTimestamp
		if s.Basis != "" {
			basis = Basis(s.Basis)
			if !basis.Valid() {
				return nil, fmt.Errorf("%w: unknown basis %q", ErrInvalidSpec, s.Basis)
			}
		}
		return AtMostBy(s.MaxEntries, basis), nil

	case TypeAnd, TypeOr:
		return s.buildCombined(kind)

	default:
		return nil, fmt.Errorf("%w: unknown policy type %q", ErrInvalidSpec, s.Type)
	}
}

func (s Spec) buildConditional() (Policy, error) {
	if len(s.Equals) == 0 && len(s.Expressions) == 0 {
		return nil, fmt.Errorf("%w: whenever needs equals or expressions", ErrInvalidSpec)
	}
	conditions := make(map[string]Predicate, len(s.Equals)+len(s.Expressions))
	for name, v := range s.Equals {
		conditions[name] = Equals(v)
	}
	for name, source := range s.Expressions {
		if _, dup := conditions[name]; dup {
			return nil, fmt.Errorf("%w: field %q has both a literal and an expression", ErrInvalidSpec, name)
		}
		p, err := Expr(source)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidSpec, name, err)
		}
		conditions[name] = p
	}
	return Whenever(conditions), nil
}

func (s Spec) buildCombined(kind string) (Policy, error) {
	if len(s.Policies) < 2 {
		return nil, fmt.Errorf("%w: %s needs at least two policies", ErrInvalidSpec, kind)
	}
	children := make([]Policy, 0, len(s.Policies))
	for i, child := range s.Policies {
		p, err := child.Build()
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		children = append(children, p)
	}
	if kind == TypeAnd {
		return And(children[0], children[1], children[2:]...), nil
	}
	return Or(children[0], children[1], children[2:]...), nil
}
