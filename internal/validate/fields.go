package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/tiketi/apiserver/internal/apperr"
)

// FieldType is the expected type of a field value.
type FieldType int

const (
	String FieldType = iota
	Int
)

// Field describes one input field. Schemas are built once and never mutated,
// so they can be shared by concurrent requests.
type Field struct {
	Name     string
	Required bool
	Type     FieldType
	// Min is the inclusive lower bound for Int fields, if set.
	Min *int
	// Max is the inclusive upper bound for Int fields, if set.
	Max *int
	// Message overrides the default "<name> is required" text.
	Message string
}

// Schema is an ordered field table; checks run in declaration order.
type Schema []Field

// MaxInt32 is the largest value an INTEGER column holds.
const MaxInt32 = math.MaxInt32

// AtLeast returns a lower bound for Field.Min.
func AtLeast(n int) *int {
	return &n
}

// AtMost returns an upper bound for Field.Max.
func AtMost(n int) *int {
	return &n
}

// Check validates values against the schema. A value is missing when the key
// is absent, nil, a nil pointer or a blank string. Supported value types are
// string, *string, int and *int.
func (s Schema) Check(values map[string]any) error {
	for _, f := range s {
		v, present := lookup(values, f.Name)
		if !present {
			if f.Required {
				return apperr.MissingField(f.Name, f.Message)
			}
			continue
		}

		if f.Type != Int {
			continue
		}
		n, ok := v.(int)
		if !ok {
			return apperr.InvalidInput(f.Name, fmt.Sprintf("%s must be an integer", f.Name))
		}
		if f.Min != nil && n < *f.Min {
			return apperr.InvalidInput(f.Name, fmt.Sprintf("%s must be at least %d", f.Name, *f.Min))
		}
		if f.Max != nil && n > *f.Max {
			return apperr.InvalidInput(f.Name, fmt.Sprintf("%s must be at most %d", f.Name, *f.Max))
		}
	}
	return nil
}

func lookup(values map[string]any, name string) (any, bool) {
	raw, ok := values[name]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case string:
		return v, strings.TrimSpace(v) != ""
	case *string:
		if v == nil {
			return nil, false
		}
		return *v, strings.TrimSpace(*v) != ""
	case *int:
		if v == nil {
			return nil, false
		}
		return *v, true
	default:
		return v, true
	}
}
