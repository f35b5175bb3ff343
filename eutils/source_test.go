package eutils

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// collectChunks runs ReadChunks to completion and returns the chunks in order
func collectChunks(t *testing.T, in io.Reader, size int) []Chunk {

	t.Helper()

	out := make(chan Chunk, 4)
	errc := make(chan error, 1)

	go func() {
		errc <- ReadChunks(context.Background(), in, size, out, nil)
	}()

	var res []Chunk
	for chunk := range out {
		res = append(res, chunk)
	}

	if err := <-errc; err != nil {
		t.Fatalf("ReadChunks failed: %v", err)
	}

	return res
}

func TestReadChunksRoundTrip(t *testing.T) {

	payload := []byte(strings.Repeat("0123456789ABCDEF", 1000) + "tail")

	for _, size := range []int{1, 7, 4096, 16000, 16004, 65536} {
		chunks := collectChunks(t, bytes.NewReader(payload), size)

		var joined []byte
		for i, chunk := range chunks {
			if chunk.Index != i {
				t.Fatalf("size %d: chunk %d has index %d", size, i, chunk.Index)
			}
			if len(chunk.Data) == 0 || len(chunk.Data) > size {
				t.Fatalf("size %d: chunk %d has %d bytes", size, i, len(chunk.Data))
			}
			if i < len(chunks)-1 && len(chunk.Data) != size {
				t.Fatalf("size %d: short chunk %d before end", size, i)
			}
			joined = append(joined, chunk.Data...)
		}

		if !bytes.Equal(joined, payload) {
			t.Errorf("size %d: chunks do not reproduce the source", size)
		}
	}
}

func TestReadChunksShortReads(t *testing.T) {

	payload := []byte(strings.Repeat("ACGT", 5000))

	// one byte per Read call, as a slow pipe would deliver
	chunks := collectChunks(t, &oneByteReader{data: payload}, 4096)

	var joined []byte
	for _, chunk := range chunks {
		joined = append(joined, chunk.Data...)
	}
	if !bytes.Equal(joined, payload) {
		t.Errorf("chunks do not reproduce the source")
	}
	if len(chunks) != 5 {
		t.Errorf("%d chunks, expected 5", len(chunks))
	}
}

type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {

	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

type failingReader struct {
	good int
}

func (r *failingReader) Read(p []byte) (int, error) {

	if r.good > 0 {
		n := min(r.good, len(p))
		r.good -= n
		return n, nil
	}
	return 0, errors.New("connection reset by peer")
}

func TestReadChunksFailure(t *testing.T) {

	out := make(chan Chunk, 16)

	err := ReadChunks(context.Background(), &failingReader{good: 10000}, 4096, out, nil)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("error = %v, expected source unavailable", err)
	}

	// the channel stays open so the consumer cannot mistake failure for end of input
	select {
	case _, ok := <-out:
		if !ok {
			t.Fatalf("channel closed after failure")
		}
	default:
		t.Fatalf("no chunks delivered before failure")
	}
}

func TestReadChunksCancel(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())

	// unbuffered and never drained, so the producer blocks on its first send
	out := make(chan Chunk)
	errc := make(chan error, 1)

	go func() {
		errc <- ReadChunks(ctx, bytes.NewReader(make([]byte, 1<<20)), 4096, out, nil)
	}()

	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, expected context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("producer did not stop after cancellation")
	}
}

func TestEfetchURL(t *testing.T) {

	actual := EfetchURL(DefaultBase, "nucleotide", "30271926")
	expected := DefaultBase + "?db=nucleotide&id=30271926&retmode=xml&rettype=fasta"

	if actual != expected {
		t.Errorf("EfetchURL = %s, expected %s", actual, expected)
	}
}

func TestOpenURL(t *testing.T) {

	payload := tseqRecord

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cache-Control") != "max-age=0" {
			http.Error(w, "missing cache control", http.StatusBadRequest)
			return
		}
		switch r.URL.Query().Get("id") {
		case "plain":
			io.WriteString(w, payload)
		case "zipped":
			w.Header().Set("Content-Encoding", "gzip")
			zw := gzip.NewWriter(w)
			io.WriteString(zw, payload)
			zw.Close()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	for _, id := range []string{"plain", "zipped"} {
		body, err := OpenURL(context.Background(), srv.Client(), EfetchURL(srv.URL, "nucleotide", id))
		if err != nil {
			t.Fatalf("%s: OpenURL failed: %v", id, err)
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			t.Fatalf("%s: read failed: %v", id, err)
		}
		if string(data) != payload {
			t.Errorf("%s: body differs from payload", id)
		}
	}

	_, err := OpenURL(context.Background(), srv.Client(), EfetchURL(srv.URL, "nucleotide", "missing"))
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("missing record error = %v, expected source unavailable", err)
	}

	_, err = OpenURL(context.Background(), srv.Client(), "http://127.0.0.1:1/efetch.fcgi")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("refused connection error = %v, expected source unavailable", err)
	}
}

func TestOpenFile(t *testing.T) {

	dir := t.TempDir()

	plain := filepath.Join(dir, "record.xml")
	if err := os.WriteFile(plain, []byte(tseqRecord), 0o644); err != nil {
		t.Fatal(err)
	}

	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	zw.Write([]byte(tseqRecord))
	zw.Close()

	zipped := filepath.Join(dir, "record.xml.gz")
	if err := os.WriteFile(zipped, zbuf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{plain, zipped} {
		fl, err := OpenFile(path)
		if err != nil {
			t.Fatalf("OpenFile(%s) failed: %v", path, err)
		}
		data, err := io.ReadAll(fl)
		fl.Close()
		if err != nil {
			t.Fatalf("read %s failed: %v", path, err)
		}
		if string(data) != tseqRecord {
			t.Errorf("%s: content differs from record", path)
		}
	}

	_, err := OpenFile(filepath.Join(dir, "absent.xml"))
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("missing file error = %v, expected source unavailable", err)
	}

	_, err = OpenFile(dir)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("directory error = %v, expected source unavailable", err)
	}
}

// cutReader delivers its data, then fails the way a body cut off in transit does
type cutReader struct {
	data []byte
}

func (r *cutReader) Read(p []byte) (int, error) {

	if len(r.data) == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReadChunksCutShort(t *testing.T) {

	for _, size := range []int{7, 4096} {
		out := make(chan Chunk, 64)

		err := ReadChunks(context.Background(), &cutReader{data: []byte(tseqRecord[:100])}, size, out, nil)
		if !errors.Is(err, ErrSourceUnavailable) {
			t.Fatalf("size %d: error = %v, expected source unavailable", size, err)
		}
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("size %d: cause lost: %v", size, err)
		}

		// every received byte is still delivered, and the channel stays open
		total := 0
		for len(out) > 0 {
			chunk := <-out
			total += len(chunk.Data)
		}
		if total != 100 {
			t.Errorf("size %d: %d bytes delivered, expected 100", size, total)
		}
		select {
		case _, ok := <-out:
			if !ok {
				t.Errorf("size %d: channel closed after failure", size)
			}
		default:
		}
	}
}

type stalledReader struct{}

func (stalledReader) Read(p []byte) (int, error) {
	return 0, nil
}

func TestReadChunksStalled(t *testing.T) {

	err := ReadChunks(context.Background(), stalledReader{}, 4096, make(chan Chunk, 1), nil)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error = %v, expected source unavailable", err)
	}
}
