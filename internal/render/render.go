// Package render writes kept records to a terminal or a pipe.
//
// Records are written one per line, either as JSON objects or as their raw
// text. In text mode a Palette turns the record's color decision into ANSI
// escapes: Fixed colors are looked up by name and FromValue colors get the
// next palette entry the first time their value is seen.
package render

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/solatis/logview/internal/types"
)

// Format selects the record encoding.
type Format string

const (
	// FormatJSON writes one JSON object per record.
	FormatJSON Format = "json"
	// FormatText writes the record text, colored when a palette is set.
	FormatText Format = "text"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json or text)", s)
	}
}

var colorNames = map[string]text.Colors{
	"black":      {text.FgBlack},
	"red":        {text.FgRed},
	"green":      {text.FgGreen},
	"yellow":     {text.FgYellow},
	"blue":       {text.FgBlue},
	"magenta":    {text.FgMagenta},
	"cyan":       {text.FgCyan},
	"white":      {text.FgWhite},
	"hi-black":   {text.FgHiBlack},
	"hi-red":     {text.FgHiRed},
	"hi-green":   {text.FgHiGreen},
	"hi-yellow":  {text.FgHiYellow},
	"hi-blue":    {text.FgHiBlue},
	"hi-magenta": {text.FgHiMagenta},
	"hi-cyan":    {text.FgHiCyan},
	"hi-white":   {text.FgHiWhite},
}

// LookupColor resolves a color name such as "red" or "hi-cyan". A "bold-"
// prefix adds bold.
func LookupColor(name string) (text.Colors, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	bold := false
	if rest, ok := strings.CutPrefix(name, "bold-"); ok {
		name, bold = rest, true
	}
	c, ok := colorNames[name]
	if !ok {
		return nil, false
	}
	if bold {
		c = append(text.Colors{text.Bold}, c...)
	}
	return c, true
}

// Palette allocates terminal colors to records. Not safe for concurrent
// use; one palette serves one output stream.
type Palette struct {
	rotation []text.Colors
	assigned map[string]text.Colors
}

// NewPalette builds a palette from color names, in rotation order.
func NewPalette(names []string) (*Palette, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("palette cannot be empty")
	}
	rotation := make([]text.Colors, 0, len(names))
	for _, name := range names {
		c, ok := LookupColor(name)
		if !ok {
			return nil, fmt.Errorf("unknown palette color %q", name)
		}
		rotation = append(rotation, c)
	}
	return &Palette{rotation: rotation, assigned: make(map[string]text.Colors)}, nil
}

// For returns the colors for c, or nil for no coloring. Equal FromValue
// values always get the same entry; entries are reused round-robin once the
// rotation is exhausted. Unknown Fixed specs render uncolored.
func (p *Palette) For(c types.Color) text.Colors {
	switch c.Kind {
	case types.ColorKindFixed:
		colors, _ := LookupColor(c.Value)
		return colors
	case types.ColorKindFromValue:
		if colors, ok := p.assigned[c.Value]; ok {
			return colors
		}
		colors := p.rotation[len(p.assigned)%len(p.rotation)]
		p.assigned[c.Value] = colors
		return colors
	default:
		return nil
	}
}

// Writer encodes records to an output stream. Output is buffered; call
// Flush when done.
type Writer struct {
	out     *bufio.Writer
	format  Format
	palette *Palette
	enc     *json.Encoder
}

// NewWriter creates a record writer. palette may be nil to disable colors;
// it is ignored for JSON output.
func NewWriter(w io.Writer, format Format, palette *Palette) *Writer {
	out := bufio.NewWriter(w)
	return &Writer{
		out:     out,
		format:  format,
		palette: palette,
		enc:     json.NewEncoder(out),
	}
}

// Write writes one record.
func (w *Writer) Write(record *types.Record) error {
	if w.format == FormatJSON {
		return w.enc.Encode(record)
	}

	line := record.Text
	if w.palette != nil {
		if colors := w.palette.For(record.Color); colors != nil {
			line = colors.Sprint(line)
		}
	}
	if _, err := w.out.WriteString(line); err != nil {
		return err
	}
	return w.out.WriteByte('\n')
}

// Flush writes buffered output.
func (w *Writer) Flush() error {
	return w.out.Flush()
}
