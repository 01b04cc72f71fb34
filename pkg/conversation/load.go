package conversation

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Decode reads a list of turns from YAML or JSON. Empty input is an empty history.
func Decode(r io.Reader) ([]Turn, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read conversation history")
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var turns []Turn
	if err := yaml.Unmarshal(b, &turns); err != nil {
		return nil, errors.Wrap(err, "decode conversation history")
	}
	return turns, nil
}
