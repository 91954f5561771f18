package idgen_test

import (
	"strings"
	"testing"

	"github.com/hazyhaar/weave/idgen"
)

func TestUUIDv7Unique(t *testing.T) {
	gen := idgen.UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate ID: %s", id)
		}
		seen[id] = true
	}
}

func TestUUIDv7Sortable(t *testing.T) {
	gen := idgen.UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		id := gen()
		if id < prev {
			t.Fatalf("IDs not monotonic: %s < %s", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	gen := idgen.Prefixed("ins_", idgen.UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "ins_") {
		t.Fatalf("missing prefix: %s", id)
	}
	if _, err := idgen.Parse(strings.TrimPrefix(id, "ins_")); err != nil {
		t.Fatalf("suffix not a UUID: %v", err)
	}
}

func TestNanoIDLength(t *testing.T) {
	gen := idgen.NanoID(8)
	for i := 0; i < 100; i++ {
		id := gen()
		if len(id) != 8 {
			t.Fatalf("got length %d, want 8", len(id))
		}
		for _, c := range id {
			if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z') {
				t.Fatalf("unexpected char %q in %s", c, id)
			}
		}
	}
}
