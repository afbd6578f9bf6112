package relay

import (
	"strconv"
	"testing"
)

func TestDedup_ForgetsOldestBeyondWindow(t *testing.T) {
	d := newDedup(3)
	for _, id := range []string{"a", "b", "c"} {
		if !d.first(id) {
			t.Fatalf("%s reported as seen", id)
		}
	}
	if d.first("b") {
		t.Fatal("duplicate inside the window delivered")
	}
	if !d.first("d") {
		t.Fatal("new id rejected")
	}
	if d.size() != 3 {
		t.Fatalf("size = %d, want 3", d.size())
	}
	// "a" was evicted by "d".
	if !d.first("a") {
		t.Fatal("evicted id still remembered")
	}
}

func TestDedup_StaysBounded(t *testing.T) {
	d := newDedup(16)
	for i := 0; i < 10000; i++ {
		d.first(strconv.Itoa(i))
	}
	if d.size() != 16 {
		t.Fatalf("size = %d, want 16", d.size())
	}
	if d.first("9999") {
		t.Fatal("most recent id forgotten")
	}
}
