package chars

import "testing"

func TestLenCountsRunesNotBytes(t *testing.T) {
	if got := Len("héllo"); got != 5 {
		t.Errorf("Len(héllo) = %d, want 5", got)
	}
}

func TestRuneSlice(t *testing.T) {
	s := "héllo"
	if got := RuneSlice(s, 1, 3); got != "él" {
		t.Errorf("RuneSlice(1,3) = %q, want %q", got, "él")
	}
	if got := RuneSlice(s, 3, 3); got != "" {
		t.Errorf("RuneSlice(3,3) = %q, want empty", got)
	}
	if got := RuneSlice(s, -5, 100); got != s {
		t.Errorf("RuneSlice clamped out of range = %q, want %q", got, s)
	}
}

func TestGraphemeLenDivergesFromRuneLenOnCombiningSequences(t *testing.T) {
	// "e" + combining acute accent (U+0301) is two runes, one grapheme.
	s := "é"
	if got := Len(s); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	if got := GraphemeLen(s); got != 1 {
		t.Errorf("GraphemeLen = %d, want 1", got)
	}
}

func TestIsBinaryDetectsNUL(t *testing.T) {
	if !IsBinary([]byte("abc\x00def")) {
		t.Error("expected a NUL byte to be treated as binary")
	}
}

func TestIsBinaryAcceptsPlainText(t *testing.T) {
	if IsBinary([]byte("just some ordinary text\n")) {
		t.Error("plain text misdetected as binary")
	}
}

func TestIsBinaryAcceptsTruncatedMultibyteRuneAtTail(t *testing.T) {
	full := []byte("hellé")
	truncated := full[:len(full)-1] // cuts the last byte of the multi-byte 'é'
	if IsBinary(truncated) {
		t.Error("a probe truncated mid-rune should not be treated as binary")
	}
}

func TestIsBinaryRejectsInvalidUTF8(t *testing.T) {
	if !IsBinary([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa}) {
		t.Error("expected invalid UTF-8 to be treated as binary")
	}
}
