package dataset

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts the tokens a record costs in training.
type TokenCounter interface {
	CountRecord(rec Record) (int, error)
}

// TiktokenCounter counts with a tiktoken BPE encoding. The first use of an
// encoding downloads its vocabulary unless TIKTOKEN_CACHE_DIR holds it.
type TiktokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads encoding (e.g. "cl100k_base").
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// CountRecord sums the tokens of every message's content.
func (c *TiktokenCounter) CountRecord(rec Record) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, m := range rec.Messages {
		total += len(c.enc.Encode(m.Content, nil, nil))
	}
	return total, nil
}
