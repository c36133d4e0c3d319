// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/logview/internal/types"
)

/*
 * View evaluation.
 *
 * Apply runs an operation list against one record, top to bottom and depth
 * first. Every side effect (variable writes, color writes) is visible to the
 * operations executed after it, including later siblings of an enclosing If.
 *
 * Binding: Set and a successful Match both write the value twice, once to the
 * record's variables and once to the run's FilterState. Writes happen in
 * execution order, so the last write to a name wins whether it came from a
 * capture or a Set.
 *
 * Skip: SkipRecord returns false. Every enclosing Apply returns false as soon
 * as a nested call does, so a skip at any depth drops the record and no
 * further operation runs for it.
 *
 * FilterState is the only state that outlives a record. It belongs to one run
 * and is mutated in record order; it is never shared between runs.
 */

// FilterState is the run-scoped memory of each variable's most recent value.
type FilterState struct {
	lastValues map[string]string
}

// NewFilterState returns empty memory for a new run.
func NewFilterState() *FilterState {
	return &FilterState{lastValues: make(map[string]string)}
}

// LastValue returns the most recent value bound to name during the run.
func (s *FilterState) LastValue(name string) (string, bool) {
	v, ok := s.lastValues[name]
	return v, ok
}

// Len returns the number of names bound so far in the run.
func (s *FilterState) Len() int {
	return len(s.lastValues)
}

// Snapshot copies the memory, for diagnostics and tests.
func (s *FilterState) Snapshot() map[string]string {
	out := make(map[string]string, len(s.lastValues))
	for k, v := range s.lastValues {
		out[k] = v
	}
	return out
}

// bind performs the dual write shared by Set and Match captures.
func (s *FilterState) bind(record *types.Record, name, value string) {
	record.Variables[name] = value
	s.lastValues[name] = value
}

// Apply executes ops against record. Returns true to keep the record, false
// if a SkipRecord executed anywhere in the evaluated subtree.
func Apply(ops []Operation, record *types.Record, state *FilterState) bool {
	for _, op := range ops {
		switch o := op.(type) {
		case Set:
			state.bind(record, o.Target, Evaluate(o.Expression, record, state))

		case ColorBy:
			record.Color = types.ColorFromValue(Evaluate(o.Expression, record, state))

		case SkipRecord:
			return false

		case If:
			captures, ok := Test(o.Condition, record, state)
			branch := o.Else
			if ok {
				// Bind in group order so duplicates resolve deterministically.
				for _, name := range conditionGroups(o.Condition) {
					if value, found := captures[name]; found {
						state.bind(record, name, value)
					}
				}
				branch = o.Then
			}
			if !Apply(branch, record, state) {
				return false
			}
		}
	}
	return true
}

// conditionGroups lists the names a condition may bind, in definition order.
func conditionGroups(cond Condition) []string {
	if m, ok := cond.(Match); ok {
		return m.Pattern.groups
	}
	return nil
}

// ApplyView evaluates a whole view against record.
func ApplyView(view *View, record *types.Record, state *FilterState) bool {
	return Apply(view.Operations, record, state)
}
