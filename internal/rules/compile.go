// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/logview/internal/types"
)

/*
 * View validation and statistics.
 *
 * NewView checks a tree of operations against resource limits before it is
 * used: nesting depth (MaxViewDepth), total operation count
 * (MaxViewOperations), and structural completeness (every If has a
 * condition with a compiled pattern, every expression is set). Loaders call
 * it so that limit violations surface at load time as configuration errors,
 * never mid-stream.
 *
 * Stats walks the same tree to summarize it for diagnostics: how many
 * operations and patterns it holds and which names it can bind.
 */

// ViewStats summarizes the shape of a view.
type ViewStats struct {
	Operations int      // total operations at every depth
	Patterns   int      // Match conditions (each compiles one regex)
	MaxDepth   int      // deepest operation list, top level is 1
	Skips      int      // SkipRecord operations
	Bindings   []string // sorted names bound by Set targets and named captures
}

// NewView validates ops and returns them as a View.
func NewView(ops ...Operation) (*View, error) {
	v := &View{Operations: ops}
	if err := Validate(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate enforces resource limits and structural completeness on v.
func Validate(v *View) error {
	if v == nil {
		return fmt.Errorf("%w: nil view", types.ErrInvalidView)
	}
	count := 0
	return validateOps(v.Operations, 1, &count)
}

func validateOps(ops []Operation, depth int, count *int) error {
	if depth > types.MaxViewDepth {
		return types.ErrViewTooDeep
	}
	for _, op := range ops {
		*count++
		if *count > types.MaxViewOperations {
			return types.ErrTooManyOperations
		}

		switch o := op.(type) {
		case If:
			if err := validateCondition(o.Condition); err != nil {
				return err
			}
			if err := validateOps(o.Then, depth+1, count); err != nil {
				return err
			}
			if err := validateOps(o.Else, depth+1, count); err != nil {
				return err
			}
		case Set:
			if o.Expression == nil {
				return fmt.Errorf("%w: set %q has no expression", types.ErrInvalidView, o.Target)
			}
		case ColorBy:
			if o.Expression == nil {
				return fmt.Errorf("%w: colorBy has no expression", types.ErrInvalidView)
			}
		case SkipRecord:
		default:
			return fmt.Errorf("%w: unknown operation %T", types.ErrInvalidView, op)
		}
	}
	return nil
}

func validateCondition(cond Condition) error {
	switch c := cond.(type) {
	case Match:
		if c.Expression == nil {
			return fmt.Errorf("%w: match has no expression", types.ErrInvalidView)
		}
		if c.Pattern == nil {
			return fmt.Errorf("%w: match has no pattern", types.ErrInvalidView)
		}
		return nil
	case nil:
		return fmt.Errorf("%w: if has no condition", types.ErrInvalidView)
	default:
		return fmt.Errorf("%w: unknown condition %T", types.ErrInvalidView, cond)
	}
}

// Stats walks v and summarizes it.
func Stats(v *View) ViewStats {
	var s ViewStats
	names := make(map[string]bool)
	statOps(v.Operations, 1, &s, names)

	s.Bindings = make([]string, 0, len(names))
	for name := range names {
		s.Bindings = append(s.Bindings, name)
	}
	sort.Strings(s.Bindings)
	return s
}

func statOps(ops []Operation, depth int, s *ViewStats, names map[string]bool) {
	if len(ops) > 0 && depth > s.MaxDepth {
		s.MaxDepth = depth
	}
	for _, op := range ops {
		s.Operations++
		switch o := op.(type) {
		case If:
			if m, ok := o.Condition.(Match); ok {
				s.Patterns++
				for _, g := range m.Pattern.Groups() {
					names[g] = true
				}
			}
			statOps(o.Then, depth+1, s, names)
			statOps(o.Else, depth+1, s, names)
		case Set:
			names[o.Target] = true
		case SkipRecord:
			s.Skips++
		}
	}
}
