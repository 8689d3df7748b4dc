package textspan

import "testing"

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	got := Normalize("  the \t quick\n\nbrown   fox ")
	want := "the quick brown fox"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeComposesNFC(t *testing.T) {
	// "é" as e + combining acute should match the precomposed form.
	decomposed := "café"
	composed := "café"
	if Normalize(decomposed) != Normalize(composed) {
		t.Fatalf("NFC forms should normalize identically")
	}
}

func TestFindSpanBasic(t *testing.T) {
	text := "It was the best of times, it was the worst of times."
	start, end := FindSpan(text, "best of times", false)
	if start != 11 || end != 24 {
		t.Fatalf("FindSpan = (%d, %d), want (11, 24)", start, end)
	}
}

func TestFindSpanRuneOffsets(t *testing.T) {
	text := "héllo wörld again"
	start, end := FindSpan(text, "wörld", false)
	if start != 6 || end != 11 {
		t.Fatalf("FindSpan = (%d, %d), want rune offsets (6, 11)", start, end)
	}
}

func TestFindSpanMiss(t *testing.T) {
	start, end := FindSpan("some page text", "not present", false)
	if start != -1 || end != -1 {
		t.Fatalf("FindSpan = (%d, %d), want (-1, -1)", start, end)
	}
}

func TestFindSpanLooseStripsInvisibles(t *testing.T) {
	text := "inter­national agree​ment"
	if start, _ := FindSpan(text, "international", false); start != -1 {
		t.Fatalf("strict match should miss across a soft hyphen")
	}
	start, end := FindSpan(text, "international", true)
	if start != 0 || end != 13 {
		t.Fatalf("loose FindSpan = (%d, %d), want (0, 13)", start, end)
	}

	withBOM := "the \uFEFFsleeper must awaken"
	start, end = FindSpan(withBOM, "sleeper must", true)
	if start != 4 || end != 16 {
		t.Fatalf("loose FindSpan past BOM = (%d, %d), want (4, 16)", start, end)
	}
}

func TestFindSpanEmptyQuote(t *testing.T) {
	if start, end := FindSpan("text", "   ", false); start != -1 || end != -1 {
		t.Fatalf("whitespace-only quote should not match, got (%d, %d)", start, end)
	}
}
