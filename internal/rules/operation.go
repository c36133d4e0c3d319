// internal/rules/operation.go
package rules

// Operation is one statement of the view language. The set of variants is
// closed: If, Set, ColorBy, SkipRecord. Children of If are owned values, so
// operation trees cannot contain cycles.
type Operation interface {
	isOperation()
}

// If runs Then when Condition holds (after binding its captures) and Else
// otherwise.
type If struct {
	Condition Condition
	Then      []Operation
	Else      []Operation
}

// Set binds Target to the value of Expression on the record and in the
// run's last-value memory.
type Set struct {
	Target     string
	Expression Expression
}

// ColorBy colors the record by the value of Expression.
type ColorBy struct {
	Expression Expression
}

// SkipRecord drops the current record and stops evaluating the view for it.
type SkipRecord struct{}

func (If) isOperation()         {}
func (Set) isOperation()        {}
func (ColorBy) isOperation()    {}
func (SkipRecord) isOperation() {}

// View is a loaded rule set: the ordered top-level operations.
// A View is read-only once built and may be shared by concurrent runs.
type View struct {
	Operations []Operation
}

// String renders the view as indented pseudocode (see Format).
func (v *View) String() string {
	return FormatString(v)
}
