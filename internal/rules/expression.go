// internal/rules/expression.go
package rules

import (
	"strconv"

	"github.com/solatis/logview/internal/types"
)

// Expression is a value source evaluated against the current record.
// The set of variants is closed: RecordText, Var, LastVarValue, Constant.
type Expression interface {
	isExpression()
	String() string
}

// RecordText evaluates to the raw text of the current record.
type RecordText struct{}

// Var evaluates to a variable bound on the current record.
type Var struct {
	Name string
}

// LastVarValue evaluates to the most recent value bound to Name during the
// run, possibly by an earlier record.
type LastVarValue struct {
	Name string
}

// Constant evaluates to a literal string.
type Constant struct {
	Value string
}

func (RecordText) isExpression()   {}
func (Var) isExpression()          {}
func (LastVarValue) isExpression() {}
func (Constant) isExpression()     {}

func (RecordText) String() string     { return "RECORD" }
func (e Var) String() string          { return "$" + e.Name }
func (e LastVarValue) String() string { return "LAST($" + e.Name + ")" }
func (e Constant) String() string     { return strconv.Quote(e.Value) }

// Evaluate computes the value of expr. Total: missing variables and missing
// last values evaluate to the empty string.
func Evaluate(expr Expression, record *types.Record, state *FilterState) string {
	switch e := expr.(type) {
	case RecordText:
		return record.Text
	case Var:
		return record.Var(e.Name)
	case LastVarValue:
		v, _ := state.LastValue(e.Name)
		return v
	case Constant:
		return e.Value
	default:
		return ""
	}
}
