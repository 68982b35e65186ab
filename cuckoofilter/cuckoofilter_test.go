package cuckoofilter

import "testing"

func TestAddLookup(t *testing.T) {
	f := New(1000)
	key := []byte("ACGTACGT")
	if _, ok := f.Lookup(key); ok {
		t.Fatalf("key should not be present before Add")
	}
	prior := f.Add(key)
	if prior != 0 {
		t.Fatalf("first Add should report prior count 0, got %d", prior)
	}
	c, ok := f.Lookup(key)
	if !ok || c != 1 {
		t.Fatalf("Lookup after one Add = (%d,%v), want (1,true)", c, ok)
	}
	f.Add(key)
	c, ok = f.Lookup(key)
	if !ok || c != 2 {
		t.Fatalf("Lookup after two Adds = (%d,%v), want (2,true)", c, ok)
	}
}

func TestDistinctKeysDoNotCollideLogically(t *testing.T) {
	f := New(1000)
	keys := [][]byte{[]byte("AAAA"), []byte("CCCC"), []byte("GGGG"), []byte("TTTT")}
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		c, ok := f.Lookup(k)
		if !ok || c != 1 {
			t.Errorf("Lookup(%s) = (%d,%v), want (1,true)", k, c, ok)
		}
	}
	if int(f.Count()) != len(keys) {
		t.Errorf("Count() = %d, want %d", f.Count(), len(keys))
	}
}

func TestSaturatesAtMaxCount(t *testing.T) {
	f := New(16)
	key := []byte("ACGT")
	for i := 0; i < MaxCount+10; i++ {
		f.Add(key)
	}
	c, ok := f.Lookup(key)
	if !ok || c != MaxCount {
		t.Fatalf("count should saturate at %d, got %d", MaxCount, c)
	}
}
