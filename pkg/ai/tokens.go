package ai

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// NewTiktokenEstimator returns a TokenEstimator backed by the given
// tiktoken encoding (e.g. "o200k_base").
func NewTiktokenEstimator(encoding string) (TokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %q: %w", encoding, err)
	}

	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}
