// Package coordinate splits a Pattern.Space coordinate into the pattern names it is made of.
//
// A coordinate such as "Forest.Creativity" names two patterns, "Forest" and "Creativity".
// Segments are kept exactly as given: no trimming, no case folding, no removal of empty segments.
package coordinate

import "strings"

// Separator delimits the patterns inside a coordinate.
const Separator = "."

// Coordinate is a parsed coordinate. Raw is the caller's input, byte for byte.
type Coordinate struct {
	Raw      string
	Patterns []string
}

// Parse never fails. The empty string parses into a single empty pattern.
func Parse(raw string) Coordinate {
	return Coordinate{
		Raw:      raw,
		Patterns: strings.Split(raw, Separator),
	}
}

// IsComposite reports whether the coordinate names more than one pattern.
func (c Coordinate) IsComposite() bool {
	return len(c.Patterns) > 1
}

func (c Coordinate) String() string {
	return c.Raw
}
