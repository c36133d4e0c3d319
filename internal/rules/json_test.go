// internal/rules/json_test.go
package rules

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solatis/logview/internal/types"
)

func TestParseView_Sample(t *testing.T) {
	data, err := os.ReadFile("testdata/sample.json")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	v, err := ParseView(data)
	if err != nil {
		t.Fatalf("ParseView() error = %v, want nil", err)
	}
	if err := equalOps(v.Operations, sampleView().Operations); err != nil {
		t.Errorf("ParseView() operations differ: %v", err)
	}
}

func TestParseView_Defaults(t *testing.T) {
	v, err := ParseView([]byte(`{"operations": [
		{"if": {"match": {"expression": {"record": {}}, "pattern": "x"}}},
		{"set": {"target": "empty"}}
	]}`))
	if err != nil {
		t.Fatalf("ParseView() error = %v, want nil", err)
	}

	ifOp, ok := v.Operations[0].(If)
	if !ok {
		t.Fatalf("Operations[0] = %T, want If", v.Operations[0])
	}
	if len(ifOp.Then) != 0 || len(ifOp.Else) != 0 {
		t.Errorf("If branches = %v / %v, want empty", ifOp.Then, ifOp.Else)
	}
	if got := v.Operations[1]; got != (Set{Target: "empty", Expression: Constant{}}) {
		t.Errorf("Operations[1] = %#v, want empty constant set", got)
	}
}

func TestParseView_EmptyOperations(t *testing.T) {
	v, err := ParseView([]byte(`{"operations": []}`))
	if err != nil {
		t.Fatalf("ParseView() error = %v, want nil", err)
	}
	if len(v.Operations) != 0 {
		t.Errorf("len(Operations) = %d, want 0", len(v.Operations))
	}
}

func TestParseView_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		wantMsg string
	}{
		{"malformed json", `{"operations": [`, types.ErrInvalidView, "malformed JSON"},
		{"trailing data", `{"operations": []} {}`, types.ErrInvalidView, "trailing data"},
		{"not an object", `[]`, types.ErrInvalidView, "view: expected object"},
		{"missing operations", `{}`, types.ErrInvalidView, `expected key "operations"`},
		{"unknown top-level key", `{"operations": [], "name": "x"}`, types.ErrInvalidView, `unexpected key "name"`},
		{"operations not array", `{"operations": {}}`, types.ErrInvalidView, "operations: expected array"},
		{"unknown operation", `{"operations": [{"drop": {}}]}`, types.ErrInvalidView, `operations[0].drop: unknown operation "drop"`},
		{"two keys in operation", `{"operations": [{"skip": {}, "colorBy": {"record": {}}}]}`, types.ErrInvalidView, "exactly one key, got 2"},
		{"skip with keys", `{"operations": [{"skip": {"now": true}}]}`, types.ErrInvalidView, "unexpected keys for skip"},
		{"if without match", `{"operations": [{"if": {"then": []}}]}`, types.ErrInvalidView, "missing condition"},
		{"if with unknown key", `{"operations": [{"if": {"match": {}, "elif": []}}]}`, types.ErrInvalidView, `unexpected key "elif"`},
		{"match without pattern", `{"operations": [{"if": {"match": {"expression": {"record": {}}}}}]}`, types.ErrInvalidView, "missing pattern"},
		{"match without expression", `{"operations": [{"if": {"match": {"pattern": "x"}}}]}`, types.ErrInvalidView, "missing expression"},
		{"pattern not string", `{"operations": [{"if": {"match": {"expression": {"record": {}}, "pattern": 1}}}]}`, types.ErrInvalidView, "operations[0].if.match.pattern: expected string"},
		{"invalid pattern", `{"operations": [{"if": {"match": {"expression": {"record": {}}, "pattern": "("}}}]}`, types.ErrInvalidPattern, "operations[0].if.match.pattern"},
		{"set target not string", `{"operations": [{"set": {"target": 3}}]}`, types.ErrInvalidView, "expected string target"},
		{"set unknown key", `{"operations": [{"set": {"target": "a", "value": "b"}}]}`, types.ErrInvalidView, `unexpected key "value"`},
		{"unknown expression", `{"operations": [{"colorBy": {"field": "x"}}]}`, types.ErrInvalidView, `unknown expression "field"`},
		{"record with keys", `{"operations": [{"colorBy": {"record": {"a": 1}}}]}`, types.ErrInvalidView, "unexpected keys for record"},
		{"variable not string", `{"operations": [{"colorBy": {"variable": 1}}]}`, types.ErrInvalidView, "operations[0].colorBy.variable: expected string"},
		{"expression not object", `{"operations": [{"colorBy": "service"}]}`, types.ErrInvalidView, "expected object for expression"},
		{
			name:    "nested error path",
			doc:     `{"operations": [{"skip": {}}, {"if": {"match": {"expression": {"record": {}}, "pattern": "x"}, "then": [{"set": {"target": "a", "expression": {"bogus": ""}}}]}}]}`,
			wantErr: types.ErrInvalidView,
			wantMsg: `operations[1].if.then[0].set.expression.bogus`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseView([]byte(tt.doc))
			if err == nil {
				t.Fatal("ParseView() error = nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseView() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("ParseView() error = %q, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseView_InvalidPatternIsViewError(t *testing.T) {
	_, err := ParseView([]byte(`{"operations": [{"if": {"match": {"expression": {"record": {}}, "pattern": "["}}}]}`))
	if !errors.Is(err, types.ErrInvalidView) || !errors.Is(err, types.ErrInvalidPattern) {
		t.Errorf("ParseView() error = %v, want both ErrInvalidView and ErrInvalidPattern", err)
	}
}

func TestParseView_TooDeep(t *testing.T) {
	doc := `{"skip": {}}`
	for i := 0; i < types.MaxViewDepth; i++ {
		doc = `{"if": {"match": {"expression": {"record": {}}, "pattern": "x"}, "then": [` + doc + `]}}`
	}
	_, err := ParseView([]byte(`{"operations": [` + doc + `]}`))
	if !errors.Is(err, types.ErrViewTooDeep) {
		t.Errorf("ParseView() error = %v, want ErrViewTooDeep", err)
	}
}

func TestParseView_TooManyOperations(t *testing.T) {
	items := make([]string, types.MaxViewOperations+1)
	for i := range items {
		items[i] = `{"skip": {}}`
	}
	_, err := ParseView([]byte(`{"operations": [` + strings.Join(items, ",") + `]}`))
	if !errors.Is(err, types.ErrTooManyOperations) {
		t.Errorf("ParseView() error = %v, want ErrTooManyOperations", err)
	}
}

func TestView_JSONRoundTrip(t *testing.T) {
	original := sampleView()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v, want nil", err)
	}

	var decoded View
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v, want nil", err)
	}
	if err := equalOps(decoded.Operations, original.Operations); err != nil {
		t.Errorf("round trip differs: %v", err)
	}

	// Encoding is deterministic.
	again, err := json.Marshal(&decoded)
	if err != nil {
		t.Fatalf("Marshal() error = %v, want nil", err)
	}
	if string(again) != string(data) {
		t.Errorf("second Marshal() =\n%s\nwant\n%s", again, data)
	}
}

func TestView_UnmarshalJSONError(t *testing.T) {
	var v View
	err := json.Unmarshal([]byte(`{"operations": [{"nope": {}}]}`), &v)
	if !errors.Is(err, types.ErrInvalidView) {
		t.Errorf("Unmarshal() error = %v, want ErrInvalidView", err)
	}
}

func TestParseViewYAML_Sample(t *testing.T) {
	data, err := os.ReadFile("testdata/sample.yaml")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	v, err := ParseViewYAML(data)
	if err != nil {
		t.Fatalf("ParseViewYAML() error = %v, want nil", err)
	}
	if err := equalOps(v.Operations, sampleView().Operations); err != nil {
		t.Errorf("ParseViewYAML() operations differ: %v", err)
	}
}

func TestParseViewYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", "operations: [\n"},
		{"non-string key", "operations:\n  - 1: {}\n"},
		{"unknown operation", "operations:\n  - drop: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseViewYAML([]byte(tt.doc)); !errors.Is(err, types.ErrInvalidView) {
				t.Errorf("ParseViewYAML() error = %v, want ErrInvalidView", err)
			}
		})
	}
}

func TestLoadViewFile(t *testing.T) {
	for _, name := range []string{"testdata/sample.json", "testdata/sample.yaml"} {
		t.Run(filepath.Ext(name), func(t *testing.T) {
			v, err := LoadViewFile(name)
			if err != nil {
				t.Fatalf("LoadViewFile() error = %v, want nil", err)
			}
			if err := equalOps(v.Operations, sampleView().Operations); err != nil {
				t.Errorf("LoadViewFile() operations differ: %v", err)
			}
		})
	}

	if _, err := LoadViewFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadViewFile(missing) error = nil, want error")
	}
}
