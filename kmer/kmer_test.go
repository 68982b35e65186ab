package kmer

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, s := range []string{"ACG", "ACGTACGT", "TTTTTTTTTTTTT", "GATTACA"} {
		km, err := Encode(s)
		if err != nil {
			t.Fatalf("Encode(%q): %v", s, err)
		}
		if got := km.Decode(); got != s {
			t.Errorf("Decode(Encode(%q)) = %q", s, got)
		}
	}
}

func TestEncodeInvalidBase(t *testing.T) {
	if _, err := Encode("ACGN"); err != ErrInvalidBase {
		t.Fatalf("Encode with N: got err=%v, want ErrInvalidBase", err)
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	km, _ := Encode("ACGTACGT")
	c1, _ := km.Canonical()
	c2, o2 := c1.Canonical()
	if !c1.Equal(c2) || !o2 {
		t.Fatalf("canonical(canonical(K)) != canonical(K)")
	}
}

func TestCanonicalConsistentAcrossOrientation(t *testing.T) {
	km, _ := Encode("ACGTT")
	rc := km.ReverseComplement()
	c1, _ := km.Canonical()
	c2, _ := rc.Canonical()
	if !c1.Equal(c2) {
		t.Fatalf("canonical forms disagree: %s vs %s", c1.Decode(), c2.Decode())
	}
}

func TestReverseComplement(t *testing.T) {
	km, _ := Encode("ACGT")
	rc := km.ReverseComplement()
	if rc.Decode() != "ACGT" {
		t.Fatalf("ACGT should be its own reverse complement, got %s", rc.Decode())
	}
	if !km.IsPalindromic() {
		t.Fatalf("ACGT should be palindromic")
	}

	km2, _ := Encode("AAAA")
	rc2 := km2.ReverseComplement()
	if rc2.Decode() != "TTTT" {
		t.Fatalf("rc(AAAA) = %s, want TTTT", rc2.Decode())
	}
}

func TestShiftLeftRight(t *testing.T) {
	km, _ := Encode("ACGT")
	code, _ := EncodeBase('A')
	shifted := km.ShiftLeft(code)
	if shifted.Decode() != "CGTA" {
		t.Fatalf("ShiftLeft(ACGT, A) = %s, want CGTA", shifted.Decode())
	}

	code2, _ := EncodeBase('G')
	shifted2 := km.ShiftRight(code2)
	if shifted2.Decode() != "GACG" {
		t.Fatalf("ShiftRight(ACGT, G) = %s, want GACG", shifted2.Decode())
	}
}

func TestNeighborsCount(t *testing.T) {
	km, _ := Encode("ACG")
	n := km.Neighbors(Sense)
	if len(n) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(n))
	}
	seen := map[string]bool{}
	for _, c := range n {
		seen[c.Kmer.Decode()] = true
	}
	for _, want := range []string{"CGA", "CGC", "CGG", "CGT"} {
		if !seen[want] {
			t.Errorf("missing sense neighbor %s", want)
		}
	}
}

func TestMinimumK(t *testing.T) {
	km, err := Encode("ACG")
	if err != nil {
		t.Fatalf("k=3 should be valid: %v", err)
	}
	if km.K() != 3 {
		t.Fatalf("K() = %d, want 3", km.K())
	}
}

func TestLongKmerMultiWord(t *testing.T) {
	s := ""
	for i := 0; i < 40; i++ {
		s += "ACGT"[i%4 : i%4+1]
	}
	km, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode long kmer: %v", err)
	}
	if km.Decode() != s {
		t.Fatalf("round trip failed for 40-base kmer")
	}
}
