package segment

import (
	"strings"
	"testing"
)

func TestSplit_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n\n", "\r\n \r\n", "\t\n\t\n"} {
		if got := Split(input, DefaultOptions()); len(got) != 0 {
			t.Errorf("Split(%q) = %v, want empty", input, got)
		}
	}
}

func TestSplit_BlankLineBoundaries(t *testing.T) {
	long := strings.Repeat("The rain fell on the harbor town. ", 3)
	input := long + "\n\n" + long + "\r\n\r\n" + long
	got := Split(input, DefaultOptions())
	if len(got) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d: %v", len(got), got)
	}
	for i, p := range got {
		if strings.TrimSpace(p) == "" {
			t.Errorf("paragraph %d is empty", i)
		}
	}
}

func TestSplit_MergesShortUnits(t *testing.T) {
	long := strings.Repeat("She walked the long road home under a heavy sky. ", 2)
	input := "Yes.\n\n" + long + "\n\nNo.\n\n" + long
	got := Split(input, Options{MinLen: 40, MaxLen: 1200})
	if len(got) != 2 {
		t.Fatalf("expected 2 merged paragraphs, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[0], "Yes.") {
		t.Errorf("short lead unit not merged forward: %q", got[0])
	}
	if !strings.Contains(got[1], "No.") {
		t.Errorf("short middle unit not merged forward: %q", got[1])
	}
}

func TestSplit_ShortTrailingUnitMergesBackward(t *testing.T) {
	long := strings.Repeat("He counted the lanterns strung along the pier. ", 2)
	got := Split(long+"\n\nThe end.", Options{MinLen: 40, MaxLen: 1200})
	if len(got) != 1 {
		t.Fatalf("expected 1 paragraph, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[0], "The end.") {
		t.Errorf("trailing unit lost: %q", got[0])
	}
}

func TestSplit_ResplitsLongUnits(t *testing.T) {
	sentence := "The caravan crossed the dry riverbed before noon. "
	input := strings.Repeat(sentence, 20)
	got := Split(input, Options{MinLen: 10, MaxLen: 200})
	if len(got) < 2 {
		t.Fatalf("expected re-split into multiple paragraphs, got %d", len(got))
	}
	for i, p := range got {
		if p == "" {
			t.Fatalf("paragraph %d is empty", i)
		}
		if n := len([]rune(p)); n > 200+len(sentence) {
			t.Errorf("paragraph %d too long: %d runes", i, n)
		}
	}
}

func TestSplit_SingleOversizedSentenceKeptWhole(t *testing.T) {
	input := strings.Repeat("word ", 100) + "end"
	got := Split(input, Options{MinLen: 10, MaxLen: 50})
	if len(got) != 1 {
		t.Fatalf("expected sentence kept whole, got %d parts", len(got))
	}
}

func TestSplit_CJKPunctuation(t *testing.T) {
	sentence := "风从山谷里吹过来，带着潮湿的泥土气息，也带来了远处钟楼的声响。"
	input := strings.Repeat(sentence, 10)
	got := Split(input, Options{MinLen: 10, MaxLen: 120})
	if len(got) < 2 {
		t.Fatalf("expected CJK re-split, got %d parts", len(got))
	}
}

func TestSplit_PreservesContentOrder(t *testing.T) {
	input := "First light broke over the ridge and woke the camp.\n\n" +
		"Second watch had seen nothing all night but foxes.\n\n" +
		"Third morning in a row the supply wagon was late."
	got := Split(input, Options{MinLen: 10, MaxLen: 1200})

	joined := strings.Join(got, "")
	squash := func(s string) string {
		return strings.Join(strings.Fields(s), "")
	}
	if squash(joined) != squash(input) {
		t.Errorf("content not preserved:\n in: %q\nout: %q", squash(input), squash(joined))
	}
	for i := 1; i < len(got); i++ {
		if strings.Index(input, got[i-1][:10]) > strings.Index(input, got[i][:10]) {
			t.Errorf("order not preserved around paragraph %d", i)
		}
	}
}

func TestSplit_NeverReturnsEmptyStrings(t *testing.T) {
	inputs := []string{
		"a\n\nb\n\nc",
		".\n\n.\n\n.",
		"!!!",
		"one two three\n\n\n\n\nfour five six",
		strings.Repeat("x. ", 500),
	}
	for _, input := range inputs {
		for i, p := range Split(input, Options{MinLen: 5, MaxLen: 30}) {
			if strings.TrimSpace(p) == "" {
				t.Errorf("Split(%q): paragraph %d empty", input, i)
			}
		}
	}
}
