package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// TokenGenerator issues one token per query. The store names the query's
// scratch tables after it and every log line of the query carries it.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator issues UUIDv7 tokens, so scratch tables left behind by a
// crash sort by the time their query started. Safe for concurrent use.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a fixed list of tokens in order and panics once
// the list is used up. Safe for concurrent use.
type FixedGenerator struct {
	tokens []string
	next   atomic.Int64
}

// NewFixedGenerator returns a generator over tokens.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

func (g *FixedGenerator) Generate() string {
	i := int(g.next.Add(1)) - 1
	if i >= len(g.tokens) {
		panic(fmt.Sprintf("FixedGenerator: token %d requested, only %d configured", i+1, len(g.tokens)))
	}
	return g.tokens[i]
}
