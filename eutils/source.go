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
// File Name:  source.go
//
// ==========================================================================

package eutils

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/pgzip"
	"go.uber.org/atomic"
)

// chunk size limits, in bytes
const (
	MinChunkSize     = 4096
	DefaultChunkSize = 65536
	MaxChunkSize     = 1048576
)

// consecutive zero-byte reads allowed before a source is declared stalled
const maxEmptyReads = 100

// Chunk is an immutable block of raw source bytes. Index counts from zero in
// production order.
type Chunk struct {
	Index int
	Data  []byte
}

// StreamCounters track source progress. The reader goroutine updates them, the
// caller may read them at any time.
type StreamCounters struct {
	Bytes  *atomic.Int64
	Chunks *atomic.Int64
}

// NewStreamCounters returns zeroed counters
func NewStreamCounters() *StreamCounters {

	return &StreamCounters{Bytes: atomic.NewInt64(0), Chunks: atomic.NewInt64(0)}
}

// EfetchURL builds the E-utilities request for one record in FASTA XML form
func EfetchURL(base, db, id string) string {

	vals := url.Values{}
	vals.Set("db", db)
	vals.Set("id", id)
	vals.Set("rettype", "fasta")
	vals.Set("retmode", "xml")

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}

	return base + sep + vals.Encode()
}

// NewClient returns an HTTP client whose timeout applies to the response
// headers only, so that a long sequence body is never cut off mid-stream.
func NewClient(timeout int) *http.Client {

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		tr.ResponseHeaderTimeout = secondsToDuration(timeout)
	}

	return &http.Client{Transport: tr}
}

// gzipBody closes both the decompressor and the underlying stream
type gzipBody struct {
	zpr  *pgzip.Reader
	body io.Closer
}

func (g *gzipBody) Read(p []byte) (int, error) {
	return g.zpr.Read(p)
}

func (g *gzipBody) Close() error {

	zerr := g.zpr.Close()
	berr := g.body.Close()
	if zerr != nil {
		return zerr
	}
	return berr
}

// onceCloser lets the pipeline close a source early without a second close
// failing later
type onceCloser struct {
	io.Reader
	closer io.Closer
	once   sync.Once
	err    error
}

func (o *onceCloser) Close() error {

	o.once.Do(func() {
		o.err = o.closer.Close()
	})
	return o.err
}

// OpenURL requests a record from the remote service. The request is bound to ctx,
// so cancelling ctx also aborts a body read that is in progress.
func OpenURL(ctx context.Context, client *http.Client, link string) (io.ReadCloser, error) {

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, kindWrap(SOURCEUNAVAILABLE, err, "unable to build request for %s", link)
	}

	// let the server send compressed data, and ask for a fresh copy
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("User-Agent", "nucsearch/"+NSearchVersion)

	res, err := client.Do(req)
	if err != nil {
		return nil, kindWrap(SOURCEUNAVAILABLE, err, "unable to make connection to %s", link)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		res.Body.Close()
		return nil, kindError(SOURCEUNAVAILABLE, "HTTP error reading %s: %s", link, res.Status)
	}

	if strings.Contains(strings.ToLower(res.Header.Get("Content-Encoding")), "gzip") {
		zpr, err := pgzip.NewReader(res.Body)
		if err != nil {
			res.Body.Close()
			return nil, kindWrap(SOURCEUNAVAILABLE, err, "unable to create gzip reader for %s", link)
		}
		return &onceCloser{Reader: zpr, closer: &gzipBody{zpr: zpr, body: res.Body}}, nil
	}

	return &onceCloser{Reader: res.Body, closer: res.Body}, nil
}

// OpenFile opens a local copy of the payload. "-" reads stdin. Gzip-compressed
// files, such as a cached record that was later compressed, are detected from
// their content and decompressed on the fly.
func OpenFile(path string) (io.ReadCloser, error) {

	var fl *os.File

	if path == "-" {
		fl = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, kindWrap(SOURCEUNAVAILABLE, err, "unable to open input file")
		}
		fl = f
	}

	// sniff the leading bytes, then replay them in front of the rest of the file
	var head bytes.Buffer
	mtype, err := mimetype.DetectReader(io.TeeReader(fl, &head))
	if err != nil {
		fl.Close()
		return nil, kindWrap(SOURCEUNAVAILABLE, err, "unable to read input file %s", path)
	}

	inp := io.MultiReader(&head, fl)

	if mtype.Is("application/gzip") {
		zpr, err := pgzip.NewReader(inp)
		if err != nil {
			fl.Close()
			return nil, kindWrap(SOURCEUNAVAILABLE, err, "unable to create gzip reader for %s", path)
		}
		return &onceCloser{Reader: zpr, closer: &gzipBody{zpr: zpr, body: fl}}, nil
	}

	return &onceCloser{Reader: inp, closer: fl}, nil
}

// fillChunk reads until the buffer is full or the source stops. Only io.EOF from
// the source itself means the input ended; a body cut short in transit or a
// truncated gzip stream reports io.ErrUnexpectedEOF, which is passed on as a
// failure.
func fillChunk(in io.Reader, buffer []byte) (int, error) {

	n := 0
	empty := 0

	for n < len(buffer) {
		m, err := in.Read(buffer[n:])
		if m < 0 || m > len(buffer)-n {
			return n, io.ErrShortBuffer
		}
		n += m
		if err != nil {
			return n, err
		}
		if m > 0 {
			empty = 0
			continue
		}
		empty++
		if empty >= maxEmptyReads {
			return n, io.ErrNoProgress
		}
	}

	return n, nil
}

// ReadChunks copies the source into fixed-size chunks sent down out, in order.
// The last chunk may be shorter. The channel is closed only after the source is
// exhausted; on a read failure or cancellation it is left open and the error is
// returned, so the consumer learns of the failure through the shared context
// rather than mistaking it for a clean end of input.
func ReadChunks(ctx context.Context, in io.Reader, size int, out chan<- Chunk, ctr *StreamCounters) error {

	if in == nil || out == nil {
		return kindError(SOURCEUNAVAILABLE, "no input source")
	}

	if size < 1 {
		size = DefaultChunkSize
	}

	idx := 0
	total := int64(0)

	for {

		if err := ctx.Err(); err != nil {
			return err
		}

		// each chunk owns its buffer, since it is handed to another goroutine
		buffer := make([]byte, size)

		n, err := fillChunk(in, buffer)

		if n > 0 {
			chunk := Chunk{Index: idx, Data: buffer[:n]}

			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}

			idx++
			total += int64(n)

			if ctr != nil {
				ctr.Bytes.Add(int64(n))
				ctr.Chunks.Inc()
			}
		}

		if err == io.EOF {
			// end of source
			close(out)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return kindWrap(SOURCEUNAVAILABLE, err, "read failed after %d bytes", total)
		}
	}
}
