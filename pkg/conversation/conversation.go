// Package conversation holds the caller-supplied turns of an exploration and folds them into
// the transcript embedded in explore prompts. Nothing here is persisted: callers resend the
// full history with every request.
package conversation

import (
	"strings"
)

type Role string

const (
	RolePattern Role = "pattern"
	RoleHuman   Role = "human"
)

// HumanLabel prefixes every turn that was not spoken by the pattern.
const HumanLabel = "Human"

// Turn is one utterance in a conversation. Slice order is chronological order.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Line renders a single turn, labelled with the coordinate when the pattern spoke it.
func Line(coordinate string, turn Turn) string {
	if turn.Role == RolePattern {
		return coordinate + ": " + turn.Content
	}
	return HumanLabel + ": " + turn.Content
}

// Lines renders turns in input order, one line per turn.
func Lines(coordinate string, turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, Line(coordinate, t))
	}
	return out
}

// Fold joins the rendered lines with newlines. An empty history folds to "".
func Fold(coordinate string, turns []Turn) string {
	return strings.Join(Lines(coordinate, turns), "\n")
}
