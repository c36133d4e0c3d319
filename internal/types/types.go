// Package types provides domain models shared across logview components.
//
// Records are the unit of output: one input line plus the variables and color
// annotation accumulated while a view was evaluated against it. Types here are
// wire-format aware (JSON) but engine agnostic; evaluation lives in internal/rules.
package types

import (
	"encoding/json"
	"fmt"
)

// Variables holds the named values bound on a single record.
// Keys are unique; iteration order is unspecified.
type Variables map[string]string

// ColorKind discriminates the Color variants.
type ColorKind int

const (
	// ColorKindDefault means no color decision was made for the record.
	ColorKindDefault ColorKind = iota
	// ColorKindFixed carries a concrete color spec (e.g. "red", "#ff0000").
	ColorKindFixed
	// ColorKindFromValue carries a value; equal values get equal colors at render time.
	ColorKindFromValue
)

// Color is the display annotation of a record.
// Zero value is the default color.
type Color struct {
	Kind  ColorKind
	Value string // color spec for ColorKindFixed, key for ColorKindFromValue
}

// DefaultColor returns the "no decision" color.
func DefaultColor() Color {
	return Color{Kind: ColorKindDefault}
}

// FixedColor returns a color with a concrete spec.
func FixedColor(spec string) Color {
	return Color{Kind: ColorKindFixed, Value: spec}
}

// ColorFromValue returns a color keyed by an arbitrary value.
func ColorFromValue(value string) Color {
	return Color{Kind: ColorKindFromValue, Value: value}
}

// IsDefault reports whether no color decision was made.
func (c Color) IsDefault() bool {
	return c.Kind == ColorKindDefault
}

// String renders the color for diagnostics.
func (c Color) String() string {
	switch c.Kind {
	case ColorKindFixed:
		return fmt.Sprintf("fixed(%s)", c.Value)
	case ColorKindFromValue:
		return fmt.Sprintf("fromValue(%s)", c.Value)
	default:
		return "default"
	}
}

// Wire returns the wire form of c as a generic value: "default" for the
// default color and single-key objects {"fixed": spec} and
// {"fromValue": value} for the payload variants. JSON and gRPC encodings
// both use it.
func (c Color) Wire() (any, error) {
	switch c.Kind {
	case ColorKindDefault:
		return "default", nil
	case ColorKindFixed:
		return map[string]any{"fixed": c.Value}, nil
	case ColorKindFromValue:
		return map[string]any{"fromValue": c.Value}, nil
	default:
		return nil, fmt.Errorf("unknown color kind %d", c.Kind)
	}
}

// MarshalJSON encodes the wire form of c.
func (c Color) MarshalJSON() ([]byte, error) {
	wire, err := c.Wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Color) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "default" {
			return fmt.Errorf("unknown color %q", s)
		}
		*c = DefaultColor()
		return nil
	}

	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("color must be \"default\" or a single-key object: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("color object must have exactly one key, got %d", len(obj))
	}
	if spec, ok := obj["fixed"]; ok {
		*c = FixedColor(spec)
		return nil
	}
	if value, ok := obj["fromValue"]; ok {
		*c = ColorFromValue(value)
		return nil
	}
	return fmt.Errorf("unknown color object")
}

// Record is one input line being evaluated, then emitted or dropped.
// Created fresh per line and owned by a single evaluation at a time.
type Record struct {
	Text      string    `json:"text"`
	Offset    int64     `json:"offset"`
	Variables Variables `json:"variables"`
	Color     Color     `json:"color"`
}

// NewRecord wraps a raw line read at offset into a record with no variables
// and the default color.
func NewRecord(text string, offset int64) *Record {
	return &Record{
		Text:      text,
		Offset:    offset,
		Variables: make(Variables),
		Color:     DefaultColor(),
	}
}

// Var returns the named variable, or the empty string when unbound.
func (r *Record) Var(name string) string {
	return r.Variables[name]
}

// Resource limits enforced when loading views and serving queries.
const (
	// MaxViewDepth bounds If nesting so recursive evaluation and parsing
	// cannot exhaust the stack on hostile input.
	MaxViewDepth = 64

	// MaxPatternLength bounds regex source size accepted from view files.
	MaxPatternLength = 4096

	// MaxViewOperations bounds the total number of operations in one view.
	MaxViewOperations = 10000

	// MaxViewNameLength bounds stored view names.
	MaxViewNameLength = 128
)
