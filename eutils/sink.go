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
// File Name:  sink.go
//
// ==========================================================================

package eutils

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
)

// csvHeader names the columns of the match file
var csvHeader = []string{"sequence", "start", "end"}

// MatchSink writes one CSV row per match and keeps the tally.
//
// Rows go to a temporary file next to the destination, which is renamed into
// place by Commit. A failed run calls Abort, which removes the temporary file,
// so the destination either holds a complete result or is not written at all.
// When the destination is "-", rows stream straight to stdout.
type MatchSink struct {
	path  string
	temp  string
	file  *os.File
	wtr   *csv.Writer
	tally *PatternTally
	rows  int
	done  bool
}

// CreateMatchSink opens the destination and writes the header row
func CreateMatchSink(path string) (*MatchSink, error) {

	s := &MatchSink{path: path, tally: NewPatternTally()}

	if path == "" || path == "-" {
		s.file = os.Stdout
	} else {
		dir, base := filepath.Split(path)
		if dir == "" {
			dir = "."
		}
		fl, err := os.CreateTemp(dir, "."+base+".*.tmp")
		if err != nil {
			return nil, kindWrap(SINKWRITEERROR, err, "unable to create output file %s", path)
		}
		s.file = fl
		s.temp = fl.Name()
	}

	s.wtr = csv.NewWriter(s.file)

	if err := s.wtr.Write(csvHeader); err != nil {
		s.Abort()
		return nil, kindWrap(SINKWRITEERROR, err, "unable to write to %s", path)
	}

	return s, nil
}

// Write tallies the match and writes its row
func (s *MatchSink) Write(m Match) error {

	err := s.wtr.Write([]string{m.Text, strconv.Itoa(m.Start), strconv.Itoa(m.End)})
	if err != nil {
		return kindWrap(SINKWRITEERROR, err, "unable to write row %d to %s", s.rows+1, s.path)
	}

	s.tally.Add(m.Text)
	s.rows++

	return nil
}

// Rows returns the number of data rows written, excluding the header
func (s *MatchSink) Rows() int {
	return s.rows
}

// Tally returns the per-substring counts
func (s *MatchSink) Tally() *PatternTally {
	return s.tally
}

// Commit flushes the rows and moves the finished file into place
func (s *MatchSink) Commit() error {

	if s.done {
		return nil
	}
	s.done = true

	s.wtr.Flush()
	if err := s.wtr.Error(); err != nil {
		s.discard()
		return kindWrap(SINKWRITEERROR, err, "unable to flush %s", s.path)
	}

	if s.temp == "" {
		return nil
	}

	if err := s.file.Close(); err != nil {
		s.discard()
		return kindWrap(SINKWRITEERROR, err, "unable to close %s", s.path)
	}
	if err := os.Chmod(s.temp, 0o644); err != nil {
		s.discard()
		return kindWrap(SINKWRITEERROR, err, "unable to set permissions on %s", s.path)
	}
	if err := os.Rename(s.temp, s.path); err != nil {
		s.discard()
		return kindWrap(SINKWRITEERROR, err, "unable to move result into %s", s.path)
	}

	return nil
}

// Abort drops the rows written so far
func (s *MatchSink) Abort() {

	if s.done {
		return
	}
	s.done = true

	if s.temp == "" {
		// rows already sent to stdout cannot be recalled
		s.wtr.Flush()
		return
	}

	s.discard()
}

// discard closes and removes the temporary file; a second close is harmless
func (s *MatchSink) discard() {

	if s.temp != "" {
		s.file.Close()
		os.Remove(s.temp)
	}
}
