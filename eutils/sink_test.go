package eutils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMatchSinkCommit(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "matches.csv")

	sink, err := CreateMatchSink(path)
	if err != nil {
		t.Fatalf("CreateMatchSink failed: %v", err)
	}

	// nothing appears at the destination until Commit
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("destination exists before commit")
	}

	for _, m := range []Match{{"AAAATAGCCCC", 1, 11}, {"AAAATAGCCCC", 12, 22}} {
		if err := sink.Write(m); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if err := sink.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}

	expected := "sequence,start,end\nAAAATAGCCCC,1,11\nAAAATAGCCCC,12,22\n"
	if string(data) != expected {
		t.Errorf("CSV = %q, expected %q", data, expected)
	}

	if sink.Rows() != 2 || sink.Tally().Count("AAAATAGCCCC") != 2 {
		t.Errorf("rows %d, tally %d", sink.Rows(), sink.Tally().Count("AAAATAGCCCC"))
	}

	// only the destination remains in the directory
	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 {
		t.Errorf("%d files left in output directory", len(ents))
	}
}

func TestMatchSinkHeaderOnly(t *testing.T) {

	path := filepath.Join(t.TempDir(), "matches.csv")

	sink, err := CreateMatchSink(path)
	if err != nil {
		t.Fatalf("CreateMatchSink failed: %v", err)
	}
	if err := sink.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "sequence,start,end\n" {
		t.Errorf("CSV = %q, expected header only", data)
	}
}

func TestMatchSinkAbort(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "matches.csv")

	sink, err := CreateMatchSink(path)
	if err != nil {
		t.Fatalf("CreateMatchSink failed: %v", err)
	}
	if err := sink.Write(Match{"ACGT", 1, 4}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	sink.Abort()
	sink.Abort()

	ents, _ := os.ReadDir(dir)
	if len(ents) != 0 {
		t.Errorf("abort left %d files behind", len(ents))
	}
}

func TestMatchSinkAbortKeepsPrevious(t *testing.T) {

	path := filepath.Join(t.TempDir(), "matches.csv")
	if err := os.WriteFile(path, []byte("previous\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink, err := CreateMatchSink(path)
	if err != nil {
		t.Fatalf("CreateMatchSink failed: %v", err)
	}
	sink.Abort()

	data, _ := os.ReadFile(path)
	if string(data) != "previous\n" {
		t.Errorf("failed run replaced existing output with %q", data)
	}
}

func TestMatchSinkBadDirectory(t *testing.T) {

	_, err := CreateMatchSink(filepath.Join(t.TempDir(), "missing", "matches.csv"))
	if !errors.Is(err, ErrSinkWrite) {
		t.Errorf("error = %v, expected sink write error", err)
	}
}
