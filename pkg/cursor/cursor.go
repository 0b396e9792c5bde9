// Package cursor provides incremental-sync cursors that fold records into a
// stream state.
package cursor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
)

// MaxCursor keeps the largest value seen in Field under the same key of the
// stream state. Numbers compare numerically, RFC3339 timestamps
// chronologically and anything else as strings.
type MaxCursor struct {
	Field string
}

// NewMaxCursor creates a cursor over field
func NewMaxCursor(field string) *MaxCursor {
	return &MaxCursor{Field: field}
}

// Update returns the state advanced by record. The input state is never
// modified; a record without the field leaves the state unchanged.
func (c *MaxCursor) Update(state core.State, record core.RecordData) core.State {
	value, ok := record[c.Field]
	if !ok || value == nil {
		return state
	}
	current, hasCurrent := state[c.Field]
	if hasCurrent && Compare(value, current) <= 0 {
		return state
	}
	next := state.Clone()
	if next == nil {
		next = make(core.State, 1)
	}
	next[c.Field] = value
	return next
}

// Value returns the cursor value held by state
func (c *MaxCursor) Value(state core.State) (interface{}, bool) {
	v, ok := state[c.Field]
	return v, ok
}

// Compare orders two cursor values. It returns a negative number when a < b,
// zero when they are equal and a positive number when a > b.
func Compare(a, b interface{}) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if at, err := time.Parse(time.RFC3339Nano, as); err == nil {
		if bt, err := time.Parse(time.RFC3339Nano, bs); err == nil {
			return at.Compare(bt)
		}
	}

	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
