// internal/rules/format.go
package rules

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

/*
 * View pretty-printer.
 *
 * Renders a view as indented pseudocode for debugging rule sets:
 *
 *   IF RECORD MATCHES "^(?P<time>\\S+) "
 *       SET service = "frontend"
 *   ELIF $message MATCHES "^service="
 *       NOTHING
 *   ELSE
 *       SKIP
 *   COLOR-BY $service
 *
 * An else list holding exactly one If is printed as ELIF, recursively, so
 * else-if chains stay flat. Any other non-empty else list is an ELSE block.
 * An empty then list prints NOTHING so the IF line never stands alone.
 */

const indentUnit = "    "

// Format writes the pseudocode rendering of view to w.
func Format(w io.Writer, view *View) error {
	bw := bufio.NewWriter(w)
	p := &printer{w: bw}
	p.ops(view.Operations, 0)
	if p.err != nil {
		return p.err
	}
	return bw.Flush()
}

// FormatString returns the pseudocode rendering of view.
func FormatString(view *View) string {
	var sb strings.Builder
	_ = Format(&sb, view)
	return sb.String()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat(indentUnit, depth), fmt.Sprintf(format, args...))
}

func (p *printer) ops(ops []Operation, depth int) {
	for _, op := range ops {
		switch o := op.(type) {
		case If:
			p.line(depth, "IF %s", o.Condition)
			p.branches(o, depth)
		case Set:
			p.line(depth, "SET %s = %s", o.Target, o.Expression)
		case ColorBy:
			p.line(depth, "COLOR-BY %s", o.Expression)
		case SkipRecord:
			p.line(depth, "SKIP")
		}
	}
}

// branches prints the then block of o and its else chain.
func (p *printer) branches(o If, depth int) {
	if len(o.Then) == 0 {
		p.line(depth+1, "NOTHING")
	} else {
		p.ops(o.Then, depth+1)
	}

	switch {
	case len(o.Else) == 0:
	case isSingleIf(o.Else):
		next := o.Else[0].(If)
		p.line(depth, "ELIF %s", next.Condition)
		p.branches(next, depth)
	default:
		p.line(depth, "ELSE")
		p.ops(o.Else, depth+1)
	}
}

func isSingleIf(ops []Operation) bool {
	if len(ops) != 1 {
		return false
	}
	_, ok := ops[0].(If)
	return ok
}
