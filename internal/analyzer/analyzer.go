// Package analyzer defines the post-quiescence analysis hook the engine
// facade invokes once its state machine drains: a pass over the listing
// document that annotates it further (string recovery, signature-matched
// naming) without scheduling any further decode work.
package analyzer

import "reverse/internal/listing"

// Pass classifies how thorough an analyzer invocation should be. The
// facade runs Full once, after the first quiescence, and Fast at the end
// of every later Disassemble call.
type Pass uint8

const (
	Full Pass = iota
	Fast
)

// Analyzer inspects and annotates a listing document after the
// disassembly algorithm has drained its work queue.
type Analyzer interface {
	Analyze(doc *listing.Document, pass Pass)
}

// Chain runs a sequence of analyzers in order, each seeing the document
// state left by the previous one.
type Chain struct {
	analyzers []Analyzer
}

// NewChain builds a Chain from analyzers, run in the given order.
func NewChain(analyzers ...Analyzer) *Chain {
	return &Chain{analyzers: analyzers}
}

// Analyze runs every analyzer in the chain against doc.
func (c *Chain) Analyze(doc *listing.Document, pass Pass) {
	for _, a := range c.analyzers {
		a.Analyze(doc, pass)
	}
}
