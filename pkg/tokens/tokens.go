// Package tokens estimates the size of compiled prompts.
//
// Counts use the cl100k_base encoding. They approximate the backend's own tokenizer and are only
// used for logs, engagement events and the compile command; nothing is truncated based on them.
package tokens

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

const DefaultEncoding = tokenizer.Cl100kBase

type Counter struct {
	encoding tokenizer.Encoding
	codec    tokenizer.Codec
}

func NewCounter(encoding tokenizer.Encoding) (*Counter, error) {
	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s codec", encoding)
	}
	return &Counter{encoding: encoding, codec: codec}, nil
}

func (c *Counter) Encoding() string {
	return string(c.encoding)
}

// Count returns the number of tokens in s.
func (c *Counter) Count(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	ids, _, err := c.codec.Encode(s)
	if err != nil {
		return 0, errors.Wrap(err, "encode")
	}
	return len(ids), nil
}

var defaultCounter = sync.OnceValues(func() (*Counter, error) {
	return NewCounter(DefaultEncoding)
})

// Count counts s with the default encoding.
func Count(s string) (int, error) {
	c, err := defaultCounter()
	if err != nil {
		return 0, err
	}
	return c.Count(s)
}
