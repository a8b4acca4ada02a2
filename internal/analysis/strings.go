// Package analysis provides post-quiescence listing analyzers: passes
// that run once the disassembly algorithm's state machine has drained,
// annotating the document without scheduling further decode work.
package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"reverse/internal/analyzer"
	"reverse/internal/listing"
	"reverse/internal/loader"
	"reverse/internal/symtab"
)

// MaxStringLength bounds how many bytes StringAnalyzer reads looking for
// a terminator before giving up on a candidate.
const MaxStringLength = 256

// MinStringLength is the shortest run of printable bytes StringAnalyzer
// will name as a string.
const MinStringLength = 4

// EscapeUnprintable returns b with every printable rune preserved and
// every control or invalid byte escaped, safe to use as a symbol comment.
func EscapeUnprintable(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		switch {
		case r == utf8.RuneError && size == 1:
			sb.WriteString(fmt.Sprintf("\\x%02X", b[0]))
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		default:
			sb.WriteString(fmt.Sprintf("\\u%04X", r))
		}
		b = b[size:]
	}
	return sb.String()
}

// StringAnalyzer scans every Data segment for null-terminated runs of
// printable bytes and names each as a String symbol with an auto-comment
// carrying the escaped text. It is architecture-neutral: it never
// disassembles, only reads raw segment bytes through the loader.
type StringAnalyzer struct {
	Loader loader.Loader
}

// Analyze implements analyzer.Analyzer, scanning every Data segment on
// both Full and Fast passes; segment contents never change after load so
// re-scanning is cheap and idempotent (existing symbols just get
// re-created in place).
func (s *StringAnalyzer) Analyze(doc *listing.Document, pass analyzer.Pass) {
	if s.Loader == nil {
		return
	}
	for _, seg := range doc.Segments() {
		if !seg.Kind.Has(loader.KindData) {
			continue
		}
		s.scanSegment(doc, seg)
	}
}

func (s *StringAnalyzer) scanSegment(doc *listing.Document, seg loader.Segment) {
	view := s.Loader.View(seg.Start)
	if view.EOB() && seg.Size == 0 {
		return
	}

	var run []byte
	runStart := seg.Start

	flush := func(end uint64) {
		if len(run) < MinStringLength {
			run = run[:0]
			return
		}
		escaped := EscapeUnprintable(run)
		doc.Symbol(runStart, "", symtab.KindString, 0)
		doc.AutoComment(runStart, fmt.Sprintf("%q", escaped))
		run = run[:0]
	}

	for off := uint64(0); off < seg.Size; off++ {
		b, err := view.At(int(off))
		if err != nil {
			flush(seg.Start + off)
			break
		}
		if b == 0 {
			flush(seg.Start + off)
			continue
		}
		if !isPrintableASCII(b) {
			flush(seg.Start + off)
			continue
		}
		if len(run) == 0 {
			runStart = seg.Start + off
		}
		run = append(run, b)
		if len(run) >= MaxStringLength {
			flush(seg.Start + off + 1)
		}
	}
	flush(seg.Start + seg.Size)
}

func isPrintableASCII(b byte) bool { return b >= 0x20 && b < 0x7f }
