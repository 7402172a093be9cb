package idgen

import (
	"strings"
	"testing"
)

func TestDefault_ProducesValidUUID(t *testing.T) {
	id := New()
	if len(id) != 36 {
		t.Fatalf("New: length %d for %q, want 36", len(id), id)
	}
	if _, err := Parse(id); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestUUIDv7_SortsByTime(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 50; i++ {
		id := gen()
		if id < prev {
			t.Fatalf("ids not monotonic: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestUUIDv7_Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestNanoID(t *testing.T) {
	for _, length := range []int{8, 16, 24} {
		id := NanoID(length)()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
		for _, c := range id {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
				t.Fatalf("NanoID: character %q outside base-36 in %q", c, id)
			}
		}
	}
}

func TestNanoID_Unique(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("sess_", NanoID(8))()
	if !strings.HasPrefix(id, "sess_") || len(id) != 5+8 {
		t.Fatalf("Prefixed: %q", id)
	}
}

func TestTimestamped(t *testing.T) {
	id := Timestamped(NanoID(6))()
	if !strings.Contains(id, "T") || !strings.Contains(id, "Z_") {
		t.Fatalf("Timestamped: bad format %q", id)
	}
}

func TestParse(t *testing.T) {
	original := UUIDv7()()
	parsed, err := Parse(original)
	if err != nil || parsed != original {
		t.Fatalf("Parse(%q) = %q, %v", original, parsed, err)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse accepted garbage")
	}
}

func TestMustParse_PanicsOnGarbage(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustParse did not panic")
		}
	}()
	MustParse("not-a-uuid")
}
