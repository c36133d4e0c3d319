package rules

import (
	"fmt"
	"io"
	"testing"

	"github.com/solatis/logview/internal/types"
)

// sampleView mirrors a realistic rule set: timestamped lines are split into
// time and message, HTTP access lines are attributed to the frontend,
// "service=" prefixes name the service, continuation lines inherit the last
// timestamp, errors are flagged and debug lines dropped.
func sampleView() *View {
	return &View{Operations: []Operation{
		If{
			Condition: Match{
				Expression: RecordText{},
				Pattern:    MustPattern(`^(?P<time>[0-9TZ:-]+) (?P<message>.*)$`),
			},
			Then: []Operation{
				If{
					Condition: Match{
						Expression: Var{Name: "message"},
						Pattern:    MustPattern(`^(?P<client>[0-9]+(\.[0-9]+){3}) ([^ ]+ ){2}\[.+\] "(?P<vhost>[^"]+)"`),
					},
					Then: []Operation{
						Set{Target: "service", Expression: Constant{Value: "frontend"}},
					},
					Else: []Operation{
						If{
							Condition: Match{
								Expression: Var{Name: "message"},
								Pattern:    MustPattern(`^service=(?P<service>[^ ]+) (?P<message>.*)$`),
							},
						},
					},
				},
				ColorBy{Expression: Var{Name: "service"}},
			},
			Else: []Operation{
				Set{Target: "time", Expression: LastVarValue{Name: "time"}},
			},
		},
		If{
			Condition: Match{Expression: RecordText{}, Pattern: MustPattern(`\bERROR\b`)},
			Then: []Operation{
				Set{Target: "error", Expression: Constant{Value: ""}},
			},
			Else: []Operation{
				If{
					Condition: Match{Expression: RecordText{}, Pattern: MustPattern(`\bDEBUG\b`)},
					Then:      []Operation{SkipRecord{}},
				},
			},
		},
	}}
}

const sampleLog = `2020-01-01T00:00:00 10.0.0.1 - - [01/Jan/2020:00:00:00] "example.org" GET /
2020-01-01T00:00:01 service=db connection opened
continuation line
2020-01-01T00:00:02 service=db DEBUG pool stats
2020-01-01T00:00:03 service=api ERROR request failed
stack frame
`

// newRecord returns a fresh record for text at offset 0.
func newRecord(text string) *types.Record {
	return types.NewRecord(text, 0)
}

// equalOps compares operation trees structurally; patterns compare by source.
func equalOps(a, b []Operation) error {
	if len(a) != len(b) {
		return fmt.Errorf("len = %d, want %d", len(a), len(b))
	}
	for i := range a {
		if err := equalOp(a[i], b[i]); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func equalOp(a, b Operation) error {
	switch x := a.(type) {
	case If:
		y, ok := b.(If)
		if !ok {
			return fmt.Errorf("got If, want %T", b)
		}
		mx, okx := x.Condition.(Match)
		my, oky := y.Condition.(Match)
		if !okx || !oky {
			return fmt.Errorf("conditions are not Match")
		}
		if mx.Expression != my.Expression {
			return fmt.Errorf("match expression = %v, want %v", mx.Expression, my.Expression)
		}
		if mx.Pattern.Source() != my.Pattern.Source() {
			return fmt.Errorf("pattern = %q, want %q", mx.Pattern.Source(), my.Pattern.Source())
		}
		if err := equalOps(x.Then, y.Then); err != nil {
			return fmt.Errorf("then%w", err)
		}
		if err := equalOps(x.Else, y.Else); err != nil {
			return fmt.Errorf("else%w", err)
		}
		return nil
	default:
		if a != b {
			return fmt.Errorf("got %#v, want %#v", a, b)
		}
		return nil
	}
}

// collect drains an iterator, failing the test on I/O errors.
func collect(t *testing.T, it *Iterator) []*types.Record {
	t.Helper()
	var out []*types.Record
	for {
		rec, err := it.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v, want nil", err)
		}
		out = append(out, rec)
	}
}
