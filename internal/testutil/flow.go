package testutil

import (
	"fmt"
	"sync"
)

// SequentialTokens generates request tokens "<prefix>1", "<prefix>2", ...
//
// This keeps scratch table names and log lines identical across runs of the
// same test.
//
// Thread-safety: SequentialTokens is safe for concurrent use.
type SequentialTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTokens creates a generator. If prefix is empty, "test" is
// used.
func NewSequentialTokens(prefix string) *SequentialTokens {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialTokens{prefix: prefix}
}

// Generate returns the next token.
func (g *SequentialTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}
