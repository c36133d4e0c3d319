// internal/rules/json.go
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/solatis/logview/internal/types"
)

/*
 * View wire format.
 *
 * A view document is {"operations": [op, ...]}. Operations and expressions
 * are single-key objects whose key names the variant:
 *
 *   {"if": {"match": {"expression": expr, "pattern": "re"}, "then": [...], "else": [...]}}
 *   {"set": {"target": "name", "expression": expr}}
 *   {"colorBy": expr}
 *   {"skip": {}}
 *
 *   {"record": {}} | {"variable": "n"} | {"lastVariableValue": "n"} | {"constant": "v"}
 *
 * then/else default to empty and a set without expression assigns the empty
 * constant. Parsing fails closed: unknown keys, wrong key counts and wrong
 * value types are rejected with an error naming the document location.
 *
 * Parsing walks a generic decoded tree (map[string]any / []any / string), so
 * the same walk serves JSON and YAML documents.
 */

// ParseView decodes a JSON view document.
func ParseView(data []byte) (*View, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", types.ErrInvalidView, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after view document", types.ErrInvalidView)
	}
	return ParseViewValue(doc)
}

// ParseViewValue builds a view from an already-decoded document tree.
func ParseViewValue(doc any) (*View, error) {
	p := &viewParser{}
	return p.view(doc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *View) UnmarshalJSON(data []byte) error {
	parsed, err := ParseView(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

type viewParser struct {
	count int
}

func viewErr(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", types.ErrInvalidView, path, fmt.Sprintf(format, args...))
}

func asObject(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok
}

// checkKeys rejects keys outside allowed. Keys are visited in sorted order so
// the reported key is deterministic.
func checkKeys(obj map[string]any, path string, allowed ...string) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			return viewErr(path, "unexpected key %q", k)
		}
	}
	return nil
}

// singleKey returns the only entry of a variant object.
func singleKey(v any, path, what string) (string, any, error) {
	obj, ok := asObject(v)
	if !ok {
		return "", nil, viewErr(path, "expected object for %s", what)
	}
	if len(obj) != 1 {
		return "", nil, viewErr(path, "%s must have exactly one key, got %d", what, len(obj))
	}
	for k, val := range obj {
		return k, val, nil
	}
	return "", nil, nil
}

func (p *viewParser) view(doc any) (*View, error) {
	obj, ok := asObject(doc)
	if !ok {
		return nil, viewErr("view", "expected object")
	}
	if err := checkKeys(obj, "view", "operations"); err != nil {
		return nil, err
	}
	raw, ok := obj["operations"]
	if !ok {
		return nil, viewErr("view", "expected key \"operations\"")
	}
	ops, err := p.operations(raw, "operations", 1)
	if err != nil {
		return nil, err
	}
	return &View{Operations: ops}, nil
}

func (p *viewParser) operations(raw any, path string, depth int) ([]Operation, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, viewErr(path, "expected array")
	}
	if depth > types.MaxViewDepth {
		return nil, fmt.Errorf("%w: %s", types.ErrViewTooDeep, path)
	}
	ops := make([]Operation, 0, len(list))
	for i, item := range list {
		op, err := p.operation(item, fmt.Sprintf("%s[%d]", path, i), depth)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (p *viewParser) operation(raw any, path string, depth int) (Operation, error) {
	p.count++
	if p.count > types.MaxViewOperations {
		return nil, fmt.Errorf("%w: at %s", types.ErrTooManyOperations, path)
	}

	key, val, err := singleKey(raw, path, "operation")
	if err != nil {
		return nil, err
	}
	path = path + "." + key

	switch key {
	case "if":
		return p.ifOperation(val, path, depth)
	case "set":
		return p.setOperation(val, path)
	case "colorBy":
		expr, err := p.expression(val, path)
		if err != nil {
			return nil, err
		}
		return ColorBy{Expression: expr}, nil
	case "skip":
		obj, ok := asObject(val)
		if !ok {
			return nil, viewErr(path, "expected object")
		}
		if len(obj) > 0 {
			return nil, viewErr(path, "unexpected keys for skip")
		}
		return SkipRecord{}, nil
	default:
		return nil, viewErr(path, "unknown operation %q", key)
	}
}

func (p *viewParser) ifOperation(val any, path string, depth int) (Operation, error) {
	obj, ok := asObject(val)
	if !ok {
		return nil, viewErr(path, "expected object")
	}
	if err := checkKeys(obj, path, "match", "then", "else"); err != nil {
		return nil, err
	}

	rawMatch, ok := obj["match"]
	if !ok {
		return nil, viewErr(path, "missing condition")
	}
	cond, err := p.match(rawMatch, path+".match")
	if err != nil {
		return nil, err
	}

	op := If{Condition: cond}
	if rawThen, ok := obj["then"]; ok {
		if op.Then, err = p.operations(rawThen, path+".then", depth+1); err != nil {
			return nil, err
		}
	}
	if rawElse, ok := obj["else"]; ok {
		if op.Else, err = p.operations(rawElse, path+".else", depth+1); err != nil {
			return nil, err
		}
	}
	return op, nil
}

func (p *viewParser) match(raw any, path string) (Condition, error) {
	obj, ok := asObject(raw)
	if !ok {
		return nil, viewErr(path, "expected object")
	}
	if err := checkKeys(obj, path, "expression", "pattern"); err != nil {
		return nil, err
	}

	rawExpr, ok := obj["expression"]
	if !ok {
		return nil, viewErr(path, "missing expression")
	}
	expr, err := p.expression(rawExpr, path+".expression")
	if err != nil {
		return nil, err
	}

	rawPattern, ok := obj["pattern"]
	if !ok {
		return nil, viewErr(path, "missing pattern")
	}
	source, ok := rawPattern.(string)
	if !ok {
		return nil, viewErr(path+".pattern", "expected string")
	}
	pattern, err := NewPattern(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.pattern: %w", types.ErrInvalidView, path, err)
	}
	return Match{Expression: expr, Pattern: pattern}, nil
}

func (p *viewParser) setOperation(val any, path string) (Operation, error) {
	obj, ok := asObject(val)
	if !ok {
		return nil, viewErr(path, "expected object")
	}
	if err := checkKeys(obj, path, "target", "expression"); err != nil {
		return nil, err
	}
	target, ok := obj["target"].(string)
	if !ok {
		return nil, viewErr(path, "expected string target")
	}

	var expr Expression = Constant{}
	if rawExpr, ok := obj["expression"]; ok {
		var err error
		if expr, err = p.expression(rawExpr, path+".expression"); err != nil {
			return nil, err
		}
	}
	return Set{Target: target, Expression: expr}, nil
}

func (p *viewParser) expression(raw any, path string) (Expression, error) {
	key, val, err := singleKey(raw, path, "expression")
	if err != nil {
		return nil, err
	}
	path = path + "." + key

	switch key {
	case "record":
		obj, ok := asObject(val)
		if !ok {
			return nil, viewErr(path, "expected object")
		}
		if len(obj) > 0 {
			return nil, viewErr(path, "unexpected keys for record")
		}
		return RecordText{}, nil
	case "variable", "lastVariableValue", "constant":
		s, ok := val.(string)
		if !ok {
			return nil, viewErr(path, "expected string")
		}
		switch key {
		case "variable":
			return Var{Name: s}, nil
		case "lastVariableValue":
			return LastVarValue{Name: s}, nil
		default:
			return Constant{Value: s}, nil
		}
	default:
		return nil, viewErr(path, "unknown expression %q", key)
	}
}

// MarshalJSON encodes the view in the wire format accepted by ParseView.
// Round trips are semantic: re-parsing yields an equal operation tree.
func (v *View) MarshalJSON() ([]byte, error) {
	ops, err := operationsWire(v.Operations)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"operations": ops})
}

func operationsWire(ops []Operation) ([]any, error) {
	out := make([]any, 0, len(ops))
	for _, op := range ops {
		w, err := operationWire(op)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func operationWire(op Operation) (any, error) {
	switch o := op.(type) {
	case If:
		m, ok := o.Condition.(Match)
		if !ok {
			return nil, fmt.Errorf("cannot encode condition %T", o.Condition)
		}
		then, err := operationsWire(o.Then)
		if err != nil {
			return nil, err
		}
		els, err := operationsWire(o.Else)
		if err != nil {
			return nil, err
		}
		body := map[string]any{
			"match": map[string]any{
				"expression": expressionWire(m.Expression),
				"pattern":    m.Pattern.Source(),
			},
			"then": then,
		}
		if len(els) > 0 {
			body["else"] = els
		}
		return map[string]any{"if": body}, nil
	case Set:
		return map[string]any{"set": map[string]any{
			"target":     o.Target,
			"expression": expressionWire(o.Expression),
		}}, nil
	case ColorBy:
		return map[string]any{"colorBy": expressionWire(o.Expression)}, nil
	case SkipRecord:
		return map[string]any{"skip": map[string]any{}}, nil
	default:
		return nil, fmt.Errorf("cannot encode operation %T", op)
	}
}

func expressionWire(expr Expression) any {
	switch e := expr.(type) {
	case RecordText:
		return map[string]any{"record": map[string]any{}}
	case Var:
		return map[string]string{"variable": e.Name}
	case LastVarValue:
		return map[string]string{"lastVariableValue": e.Name}
	case Constant:
		return map[string]string{"constant": e.Value}
	default:
		return nil
	}
}
