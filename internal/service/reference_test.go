package service

import (
	"regexp"
	"testing"
)

var referenceRE = regexp.MustCompile(`^RF-\d{14}-[0-9a-f]{16}$`)

// TestNewReference_Format verifies the timestamp prefix and the 16 hex
// digit random suffix.
func TestNewReference_Format(t *testing.T) {
	ref := NewReference()
	if !referenceRE.MatchString(ref) {
		t.Errorf("reference %q does not match RF-<timestamp>-<16 hex>", ref)
	}
}

// TestNewReference_Unique generates 5000 references and checks for
// collisions. With 64 bits of suffix entropy a duplicate here would
// indicate a broken random source.
func TestNewReference_Unique(t *testing.T) {
	const n = 5000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		ref := NewReference()
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q generated on iteration %d", ref, i)
		}
		seen[ref] = struct{}{}
	}
}
