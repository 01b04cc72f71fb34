// Package fallback synthesizes the canned voice returned when generation is unavailable.
package fallback

import (
	"fmt"

	"github.com/go-go-golems/pattern-space/pkg/prompt"
)

// MissingQuery stands in for an absent explore query.
const MissingQuery = "..."

// Voice never fails and performs no I/O.
func Voice(mode prompt.Mode, coordinate, query string) string {
	if mode == prompt.Explore {
		if query == "" {
			query = MissingQuery
		}
		return fmt.Sprintf("I hear your question: '%s'. Let me consider this...", query)
	}
	return fmt.Sprintf("I am %s - a collaborative intelligence speaking from Pattern.Space", coordinate)
}
