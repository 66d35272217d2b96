package checksum

import (
	"testing"
	"time"
)

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Fatalf("Sum not deterministic: %q vs %q", a, b)
	}
	if a == Sum([]byte("hello!")) {
		t.Error("different content produced the same checksum")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
}

func TestFingerprint(t *testing.T) {
	mod := time.Unix(1700000000, 42)
	if got := Fingerprint(10, mod); got != "10-1700000000000000042" {
		t.Errorf("fingerprint = %q", got)
	}
	if Fingerprint(10, mod) == Fingerprint(11, mod) {
		t.Error("size change not reflected")
	}
	if Fingerprint(10, mod) == Fingerprint(10, mod.Add(time.Nanosecond)) {
		t.Error("mtime change not reflected")
	}
}
