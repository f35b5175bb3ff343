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
// File Name:  tally.go
//
// ==========================================================================

package eutils

import (
	"fmt"
	"io"
	"slices"

	"github.com/gedex/inflector"
)

// TallyEntry is one distinct matched substring and its count
type TallyEntry struct {
	Text  string
	Count int
}

// PatternTally counts matches by substring, remembering first-seen order
type PatternTally struct {
	index   map[string]int
	entries []TallyEntry
	total   int
}

// NewPatternTally returns an empty tally
func NewPatternTally() *PatternTally {

	return &PatternTally{index: make(map[string]int)}
}

// Add counts one occurrence of text
func (t *PatternTally) Add(text string) {

	idx, ok := t.index[text]
	if !ok {
		idx = len(t.entries)
		t.index[text] = idx
		t.entries = append(t.entries, TallyEntry{Text: text})
	}

	t.entries[idx].Count++
	t.total++
}

// Count returns the occurrences of one substring
func (t *PatternTally) Count(text string) int {

	if idx, ok := t.index[text]; ok {
		return t.entries[idx].Count
	}
	return 0
}

// Total returns the sum of all counts
func (t *PatternTally) Total() int {
	return t.total
}

// Len returns the number of distinct substrings
func (t *PatternTally) Len() int {
	return len(t.entries)
}

// Sorted returns the entries by descending count, ties in first-seen order
func (t *PatternTally) Sorted() []TallyEntry {

	res := slices.Clone(t.entries)

	slices.SortStableFunc(res, func(a, b TallyEntry) int {
		return b.Count - a.Count
	})

	return res
}

// PrintSummary writes one "substring<TAB>count" line per tally entry, or the
// no-match message
func PrintSummary(w io.Writer, t *PatternTally) error {

	if t == nil || t.Len() == 0 {
		_, err := fmt.Fprintln(w, "No matching sequences found.")
		return err
	}

	for _, ent := range t.Sorted() {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", ent.Text, ent.Count); err != nil {
			return err
		}
	}

	return nil
}

// SummaryFooter describes the totals, e.g. "2 matches in 1 distinct sequence"
func SummaryFooter(t *PatternTally) string {

	plural := func(num int, noun string) string {
		if num == 1 {
			return fmt.Sprintf("%d %s", num, noun)
		}
		return fmt.Sprintf("%d %s", num, inflector.Pluralize(noun))
	}

	return plural(t.Total(), "match") + " in " + plural(t.Len(), "distinct sequence")
}
