package analysis

import (
	"reverse/internal/analyzer"
	"reverse/internal/buffer"
	"reverse/internal/listing"
	"reverse/internal/loader"
)

// SignatureDatabase is the optional external collaborator named in the
// engine's facade contract: given a view over a segment, it reports
// matches it recognizes so the engine can name the matched function.
type SignatureDatabase interface {
	Search(view buffer.View, callback func(address uint64, name string))
}

// SignatureAnalyzer runs a SignatureDatabase against every code segment
// after quiescence, naming matched functions. It is a thin adapter: all
// pattern-matching logic lives outside the core, in the database
// implementation.
type SignatureAnalyzer struct {
	Database SignatureDatabase
	Loader   loader.Loader
}

// Analyze implements analyzer.Analyzer. It only runs on a Full pass:
// signature matching is expensive and the set of code segments never
// changes once the loader has published them.
func (s *SignatureAnalyzer) Analyze(doc *listing.Document, pass analyzer.Pass) {
	if s.Database == nil || s.Loader == nil || pass != analyzer.Full {
		return
	}
	for _, seg := range doc.Segments() {
		if !seg.Kind.Has(loader.KindCode) {
			continue
		}
		view := s.Loader.View(seg.Start)
		s.Database.Search(view, func(address uint64, name string) {
			doc.Function(address, name, 0)
		})
	}
}
