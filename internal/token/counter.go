// Package token provides token counting against a fixed reference encoding.
//
// The whole pipeline (ingestion chunk budgets and query-time prompts) must
// count tokens with the same encoding, otherwise chunk-size and overlap
// bounds silently drift between index and query time.
package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the fixed reference encoding for the pipeline.
const Encoding = "cl100k_base"

// Counter counts tokens using the cl100k_base encoding.
// A Counter is immutable after construction and safe for concurrent use.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter initializes the reference encoding.
// The underlying BPE tables are loaded once; construct a single Counter at
// startup and share it.
func NewCounter() (*Counter, error) {
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", Encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text. Deterministic, no side effects.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
