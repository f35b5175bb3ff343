// ===========================================================================
//
//                            PUBLIC DOMAIN NOTICE
//            National Center for Biotechnology Information (NCBI)
//
//  This software/database is a "United States Government Work" under the
//  terms of the United States Copyright Act. It was written as part of
//  the author's official duties as a United States Government employee and
//  thus cannot be copyrighted. This software/database is freely available
//  to the public for use. The National Library of Medicine and the U.S.
//  Government do not place any restriction on its use or reproduction.
//  We would, however, appreciate having the NCBI and the author cited in
//  any work or product based on this material.
//
//  Although all reasonable efforts have been taken to ensure the accuracy
//  and reliability of the software and data, the NLM and the U.S.
//  Government do not and cannot warrant the performance or results that
//  may be obtained by using this software or data. The NLM and the U.S.
//  Government disclaim all warranties, express or implied, including
//  warranties of performance, merchantability or fitness for any particular
//  purpose.
//
// ===========================================================================
//
// File Name:  scan.go
//
// ==========================================================================

package eutils

import (
	"regexp"
	"regexp/syntax"
	"unicode/utf8"
)

// Match is one located occurrence. Start and End are 1-based and inclusive.
type Match struct {
	Text  string
	Start int
	End   int
}

// Pattern is a compiled search expression. Width is the longest match in bytes,
// or -1 if repetition is unbounded. Pinned is set when the expression contains
// position assertions (^, $, \b, \B, \A, \z) whose outcome depends on text
// beyond the match itself.
type Pattern struct {
	Expr   string
	re     *regexp.Regexp
	Width  int
	Pinned bool
}

// CompilePattern compiles the expression once, before any input is read. An
// expression that can match the empty string is rejected, since an empty match
// has no inclusive interval.
func CompilePattern(expr string) (*Pattern, error) {

	if expr == "" {
		return nil, kindError(INVALIDPATTERN, "empty pattern")
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, kindWrap(INVALIDPATTERN, err, "unable to compile '%s'", expr)
	}

	if re.MatchString("") {
		return nil, kindError(INVALIDPATTERN, "'%s' matches the empty sequence", expr)
	}

	// regexp.Compile uses the Perl flags, parse the same way to measure the expression
	syn, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return nil, kindWrap(INVALIDPATTERN, err, "unable to parse '%s'", expr)
	}

	width, pinned := matchWidth(syn.Simplify())

	return &Pattern{Expr: expr, re: re, Width: width, Pinned: pinned}, nil
}

// Streaming reports whether matches can be decided from a bounded window
func (p *Pattern) Streaming() bool {

	return p.Width >= 0 && !p.Pinned
}

// FindAll returns every non-overlapping match in a complete sequence
func (p *Pattern) FindAll(seq string) []Match {

	var res []Match

	for _, loc := range p.re.FindAllStringIndex(seq, -1) {
		if loc[1] > loc[0] {
			res = append(res, Match{Text: seq[loc[0]:loc[1]], Start: loc[0] + 1, End: loc[1]})
		}
	}

	return res
}

// matchWidth returns the maximum number of bytes a (simplified) expression can
// consume, or -1 if unbounded, and whether it contains position assertions
func matchWidth(re *syntax.Regexp) (int, bool) {

	runeWidth := func(r rune) int {
		if re.Flags&syntax.FoldCase != 0 {
			// case folding can reach multi-byte equivalents, such as the Kelvin sign for k
			return utf8.UTFMax
		}
		if n := utf8.RuneLen(r); n > 0 {
			return n
		}
		return utf8.UTFMax
	}

	switch re.Op {

	case syntax.OpNoMatch, syntax.OpEmptyMatch:
		return 0, false

	case syntax.OpLiteral:
		width := 0
		for _, r := range re.Rune {
			width += runeWidth(r)
		}
		return width, false

	case syntax.OpCharClass:
		// ranges are stored as lo, hi pairs in ascending order
		width := 0
		for i := 1; i < len(re.Rune); i += 2 {
			if n := runeWidth(re.Rune[i]); n > width {
				width = n
			}
		}
		return width, false

	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return utf8.UTFMax, false

	case syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return 0, true

	case syntax.OpCapture, syntax.OpQuest:
		return matchWidth(re.Sub[0])

	case syntax.OpStar, syntax.OpPlus:
		_, pinned := matchWidth(re.Sub[0])
		return -1, pinned

	case syntax.OpRepeat:
		width, pinned := matchWidth(re.Sub[0])
		if re.Max < 0 || width < 0 {
			return -1, pinned
		}
		return width * re.Max, pinned

	case syntax.OpConcat:
		total, pinned := 0, false
		for _, sub := range re.Sub {
			width, pnd := matchWidth(sub)
			pinned = pinned || pnd
			if width < 0 || total < 0 {
				total = -1
			} else {
				total += width
			}
		}
		return total, pinned

	case syntax.OpAlternate:
		widest, pinned := 0, false
		for _, sub := range re.Sub {
			width, pnd := matchWidth(sub)
			pinned = pinned || pnd
			if width < 0 || widest < 0 {
				widest = -1
			} else if width > widest {
				widest = width
			}
		}
		return widest, pinned
	}

	return -1, true
}

// Scanner finds non-overlapping, leftmost-first matches in a sequence that
// arrives in fragments.
//
// With a streaming pattern of width W, a match starting at position p is decided
// once W+1 bytes from p are present: the match cannot grow beyond W bytes, and
// one more byte covers any lookahead at its end. Each scan resumes at the end of
// the previous match. Positions that can no longer start a match are discarded,
// so the window never holds more than W bytes between fragments.
//
// Other patterns fall back to assembling the whole sequence and scanning once
// at Close. Both paths report the same matches.
type Scanner struct {
	pat  *Pattern
	emit func(Match) error

	window []byte
	base   int
	count  int
	err    error
}

// NewScanner returns a scanner that passes each match to emit, in order
func (p *Pattern) NewScanner(emit func(Match) error) *Scanner {

	return &Scanner{pat: p, emit: emit}
}

// Count returns the number of matches emitted so far
func (s *Scanner) Count() int {

	return s.count
}

// Write appends the next fragment of sequence text
func (s *Scanner) Write(text string) error {

	if s.err != nil {
		return s.err
	}

	s.window = append(s.window, text...)

	if s.pat.Streaming() {
		s.err = s.drain(false)
	}

	return s.err
}

// Close scans whatever remains once the sequence has ended
func (s *Scanner) Close() error {

	if s.err != nil {
		return s.err
	}

	if s.pat.Streaming() {
		s.err = s.drain(true)
	} else {
		s.err = s.scanAll()
	}

	s.window = nil

	return s.err
}

func (s *Scanner) send(start, end int) error {

	s.count++
	mtch := Match{Text: string(s.window[start:end]), Start: s.base + start + 1, End: s.base + end}

	if s.emit == nil {
		return nil
	}
	return s.emit(mtch)
}

// drain emits every decided match in the window and discards decided positions
func (s *Scanner) drain(final bool) error {

	width := s.pat.Width
	size := len(s.window)
	pos := 0

	for pos < size {
		loc := s.pat.re.FindIndex(s.window[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if !final && start+width+1 > size {
			// more text could change this outcome
			break
		}
		if end == start {
			// cannot happen with an expression that rejects the empty string
			// at every position, but never loop on an empty match
			pos = start + 1
			continue
		}
		if err := s.send(start, end); err != nil {
			return err
		}
		pos = end
	}

	if final {
		s.base += size
		s.window = s.window[:0]
		return nil
	}

	// positions before size-width have been decided as non-matching
	keep := max(pos, size-width)
	keep = min(keep, size)

	if keep > 0 {
		n := copy(s.window, s.window[keep:])
		s.window = s.window[:n]
		s.base += keep
	}

	return nil
}

// scanAll handles patterns whose matches cannot be decided from a bounded window
func (s *Scanner) scanAll() error {

	for _, loc := range s.pat.re.FindAllIndex(s.window, -1) {
		if loc[1] == loc[0] {
			continue
		}
		if err := s.send(loc[0], loc[1]); err != nil {
			return err
		}
	}

	s.base += len(s.window)

	return nil
}
