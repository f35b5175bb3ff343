package eutils

import (
	"strings"
	"testing"
)

func TestTallyOrder(t *testing.T) {

	tally := NewPatternTally()
	for _, str := range []string{"TAG", "TAA", "TGA", "TAA", "TGA", "TAA"} {
		tally.Add(str)
	}

	actual := tally.Sorted()
	expected := []TallyEntry{{"TAA", 3}, {"TGA", 2}, {"TAG", 1}}

	if len(actual) != len(expected) {
		t.Fatalf("Sorted = %v, expected %v", actual, expected)
	}
	for i := range expected {
		if actual[i] != expected[i] {
			t.Errorf("entry %d = %v, expected %v", i, actual[i], expected[i])
		}
	}

	if tally.Total() != 6 || tally.Len() != 3 || tally.Count("TGA") != 2 || tally.Count("CCC") != 0 {
		t.Errorf("totals wrong: total %d len %d", tally.Total(), tally.Len())
	}
}

func TestTallyTiesKeepFirstSeen(t *testing.T) {

	tally := NewPatternTally()
	for _, str := range []string{"GG", "CC", "AA", "CC", "GG", "AA"} {
		tally.Add(str)
	}

	var sb strings.Builder
	if err := PrintSummary(&sb, tally); err != nil {
		t.Fatal(err)
	}

	expected := "GG\t2\nCC\t2\nAA\t2\n"
	if sb.String() != expected {
		t.Errorf("summary = %q, expected %q", sb.String(), expected)
	}
}

func TestPrintSummaryEmpty(t *testing.T) {

	for _, tally := range []*PatternTally{nil, NewPatternTally()} {
		var sb strings.Builder
		if err := PrintSummary(&sb, tally); err != nil {
			t.Fatal(err)
		}
		if sb.String() != "No matching sequences found.\n" {
			t.Errorf("summary = %q", sb.String())
		}
	}
}

func TestSummaryFooter(t *testing.T) {

	tally := NewPatternTally()
	tally.Add("AAAATAGCCCC")
	tally.Add("AAAATAGCCCC")

	if str := SummaryFooter(tally); str != "2 matches in 1 distinct sequence" {
		t.Errorf("footer = %s", str)
	}

	tally.Add("AAAATAGCCCA")

	if str := SummaryFooter(tally); str != "3 matches in 2 distinct sequences" {
		t.Errorf("footer = %s", str)
	}
}
