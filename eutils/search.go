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
// File Name:  search.go
//
// ==========================================================================

package eutils

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// SearchResult summarizes a completed search
type SearchResult struct {
	Record    SequenceRecord
	Tally     *PatternTally
	Rows      int
	Bytes     int64
	Chunks    int64
	CachePath string
	CacheErr  error
}

// SearchOptions carries collaborators that tests and callers may replace
type SearchOptions struct {
	Client   *http.Client
	Now      func() time.Time
	Counters *StreamCounters
}

// Search runs the whole pipeline for one record.
//
// Two goroutines share a bounded chunk channel: the reader pulls the source, and
// the consumer writes the optional cache copy, extracts the sequence, scans it,
// and writes the matches. A failure in either cancels the other; the source is
// closed and the cache file flushed before Search returns.
func Search(ctx context.Context, cfg *Config, pat *Pattern, opts *SearchOptions) (*SearchResult, error) {

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if opts == nil {
		opts = &SearchOptions{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Counters == nil {
		opts.Counters = NewStreamCounters()
	}

	// fail fast on the pattern before touching any file or connection
	if pat == nil {
		p, err := CompilePattern(cfg.Pattern)
		if err != nil {
			return nil, err
		}
		pat = p
	}

	sink, err := CreateMatchSink(cfg.Output)
	if err != nil {
		return nil, err
	}

	grp, gctx := errgroup.WithContext(ctx)

	var src io.ReadCloser
	if cfg.Input != "" {
		src, err = OpenFile(cfg.Input)
	} else {
		client := opts.Client
		if client == nil {
			client = NewClient(cfg.Timeout)
		}
		src, err = OpenURL(gctx, client, cfg.URL())
	}
	if err != nil {
		sink.Abort()
		return nil, err
	}
	defer src.Close()

	var prst *ChunkPersister
	if cfg.Cache {
		prst = CreateChunkPersister(CachePath(cfg.CacheDir, cfg.Database, cfg.CacheID(), opts.Now()))
	}

	size := cfg.ChunkSize
	if size < 1 {
		size = ChunkSize()
	}

	chunks := make(chan Chunk, ChanDepth())

	res := &SearchResult{}

	// reader
	grp.Go(func() error {
		return ReadChunks(gctx, src, size, chunks, opts.Counters)
	})

	// consumer
	grp.Go(func() error {

		defer prst.Close()

		xtr := NewSequenceExtractor(cfg.ExtractFields())
		scn := pat.NewScanner(sink.Write)

		toScanner := func(frag SequenceFragment) error {
			return scn.Write(frag.Text)
		}

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case chunk, ok := <-chunks:
				if !ok {
					rec, err := xtr.Close()
					if err != nil {
						return err
					}
					if err := scn.Close(); err != nil {
						return err
					}
					res.Record = rec
					return nil
				}
				chunk = prst.Pass(chunk)
				if err := xtr.Feed(chunk.Data, toScanner); err != nil {
					return err
				}
			}
		}
	})

	err = grp.Wait()

	res.Bytes = opts.Counters.Bytes.Load()
	res.Chunks = opts.Counters.Chunks.Load()
	if prst != nil {
		res.CachePath = prst.Path
		res.CacheErr = prst.Err()
	}

	if err != nil {
		sink.Abort()
		return res, err
	}

	if err := sink.Commit(); err != nil {
		return res, err
	}

	res.Tally = sink.Tally()
	res.Rows = sink.Rows()

	if res.Record.Declared >= 0 && res.Record.Declared != res.Record.Length {
		DisplayWarning("Record declares %d bases, %d were found", res.Record.Declared, res.Record.Length)
	}

	return res, nil
}
