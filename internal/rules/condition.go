// internal/rules/condition.go
package rules

import (
	"fmt"
	"strconv"

	"github.com/solatis/logview/internal/types"
)

// Condition is the test of an If operation. Currently the only variant is Match.
type Condition interface {
	isCondition()
	String() string
}

// Match tests whether the value of Expression satisfies Pattern.
type Match struct {
	Expression Expression
	Pattern    *Pattern
}

func (Match) isCondition() {}

func (c Match) String() string {
	return fmt.Sprintf("%s MATCHES %s", c.Expression, strconv.Quote(c.Pattern.Source()))
}

// Test evaluates cond against the record. On success it returns the captures
// to bind; a failed test binds nothing.
func Test(cond Condition, record *types.Record, state *FilterState) (map[string]string, bool) {
	switch c := cond.(type) {
	case Match:
		return c.Pattern.Match(Evaluate(c.Expression, record, state))
	default:
		return nil, false
	}
}
