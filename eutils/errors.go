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
// File Name:  errors.go
//
// ==========================================================================

package eutils

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind is the integer type for pipeline failure categories
type ErrorKind int

// ErrorKind keys for pipeline failures
const (
	_ ErrorKind = iota
	SOURCEUNAVAILABLE
	PERSISTENCEERROR
	MALFORMEDSOURCE
	INVALIDPATTERN
	SINKWRITEERROR
	CONFIGERROR
)

var errorKindNames = map[ErrorKind]string{
	SOURCEUNAVAILABLE: "source unavailable",
	PERSISTENCEERROR:  "persistence error",
	MALFORMEDSOURCE:   "malformed source",
	INVALIDPATTERN:    "invalid pattern",
	SINKWRITEERROR:    "sink write error",
	CONFIGERROR:       "configuration error",
}

func (k ErrorKind) String() string {

	if str, ok := errorKindNames[k]; ok {
		return str
	}
	return "unknown error"
}

// SearchError attaches an ErrorKind to the underlying cause. Causes are created
// with github.com/pkg/errors, so "%+v" prints the stack where they originated.
type SearchError struct {
	Kind ErrorKind
	Err  error
}

// sentinel values for errors.Is comparisons
var (
	ErrSourceUnavailable = &SearchError{Kind: SOURCEUNAVAILABLE}
	ErrPersistence       = &SearchError{Kind: PERSISTENCEERROR}
	ErrMalformedSource   = &SearchError{Kind: MALFORMEDSOURCE}
	ErrInvalidPattern    = &SearchError{Kind: INVALIDPATTERN}
	ErrSinkWrite         = &SearchError{Kind: SINKWRITEERROR}
	ErrConfig            = &SearchError{Kind: CONFIGERROR}
)

func (e *SearchError) Error() string {

	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// Is matches any sentinel of the same kind
func (e *SearchError) Is(target error) bool {

	t, ok := target.(*SearchError)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

// Format prints the cause's stack trace for "%+v"
func (e *SearchError) Format(s fmt.State, verb rune) {

	switch verb {
	case 'v':
		if s.Flag('+') && e.Err != nil {
			fmt.Fprintf(s, "%s: %+v", e.Kind.String(), e.Err)
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// KindOf returns the ErrorKind carried by err, or 0 if there is none
func KindOf(err error) ErrorKind {

	var se *SearchError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func kindError(kind ErrorKind, format string, args ...interface{}) error {

	return &SearchError{Kind: kind, Err: errors.Errorf(format, args...)}
}

func kindWrap(kind ErrorKind, err error, format string, args ...interface{}) error {

	if err == nil {
		return nil
	}
	// do not rewrap a failure that already has a kind
	if KindOf(err) != 0 {
		return err
	}
	return &SearchError{Kind: kind, Err: errors.Wrapf(err, format, args...)}
}
