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
// File Name:  persist.go
//
// ==========================================================================

package eutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/atomic"
)

// CachePath names the local copy of a record. Repeated runs for the same
// database and identifier on the same day produce the same name.
func CachePath(dir, db, id string, when time.Time) string {

	clean := func(str string) string {
		return strings.Map(func(ch rune) rune {
			switch {
			case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
				return ch
			case ch == '.' || ch == '-' || ch == '_':
				return ch
			}
			return '_'
		}, str)
	}

	if dir == "" {
		dir = "."
	}

	name := fmt.Sprintf("%s_%s_%s.xml", clean(db), clean(id), when.Format("2006-01-02"))

	return filepath.Join(dir, name)
}

// ChunkPersister appends every chunk that passes through it to a cache file.
//
// Persistence is best-effort: if the file cannot be created or a write fails,
// the failure is recorded as a PERSISTENCEERROR, a warning is displayed, further
// writes are skipped, and chunks keep flowing to the search unchanged. A partial
// file is left on disk.
type ChunkPersister struct {
	Path    string
	dst     io.WriteCloser
	written *atomic.Int64
	failure *atomic.Error
}

// CreateChunkPersister creates (or truncates) the cache file once, at pipeline start
func CreateChunkPersister(path string) *ChunkPersister {

	p := &ChunkPersister{Path: path, written: atomic.NewInt64(0), failure: atomic.NewError(nil)}

	fl, err := os.Create(path)
	if err != nil {
		p.fail(kindWrap(PERSISTENCEERROR, err, "unable to create cache file"))
		return p
	}
	p.dst = fl

	return p
}

// NewChunkPersister wraps an already open destination
func NewChunkPersister(path string, dst io.WriteCloser) *ChunkPersister {

	return &ChunkPersister{Path: path, dst: dst, written: atomic.NewInt64(0), failure: atomic.NewError(nil)}
}

func (p *ChunkPersister) fail(err error) {

	if p.failure.Load() == nil {
		p.failure.Store(err)
		DisplayWarning("Caching disabled, search continues - %s", err.Error())
	}
	if p.dst != nil {
		p.dst.Close()
		p.dst = nil
	}
}

// Pass writes the chunk to the cache file and returns it unchanged
func (p *ChunkPersister) Pass(chunk Chunk) Chunk {

	if p == nil || p.dst == nil {
		return chunk
	}

	n, err := p.dst.Write(chunk.Data)
	p.written.Add(int64(n))
	if err == nil && n < len(chunk.Data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		p.fail(kindWrap(PERSISTENCEERROR, err, "write to %s failed after %d bytes", p.Path, p.written.Load()))
	}

	return chunk
}

// Close flushes and closes the cache file. It is called both at end of stream and
// when the pipeline fails.
func (p *ChunkPersister) Close() error {

	if p == nil || p.dst == nil {
		return p.Err()
	}

	dst := p.dst
	p.dst = nil

	if fl, ok := dst.(*os.File); ok {
		if err := fl.Sync(); err != nil {
			p.fail(kindWrap(PERSISTENCEERROR, err, "unable to flush %s", p.Path))
		}
	}
	if err := dst.Close(); err != nil {
		p.fail(kindWrap(PERSISTENCEERROR, err, "unable to close %s", p.Path))
	}

	return p.Err()
}

// Written returns the number of bytes stored in the cache file
func (p *ChunkPersister) Written() int64 {

	if p == nil {
		return 0
	}
	return p.written.Load()
}

// Err returns the recorded persistence failure, if any
func (p *ChunkPersister) Err() error {

	if p == nil {
		return nil
	}
	return p.failure.Load()
}
