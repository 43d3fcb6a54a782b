package chat

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestCanonicalPair(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	lo1, hi1 := canonicalPair(a, b)
	lo2, hi2 := canonicalPair(b, a)

	// Both argument orders resolve to the same ordered pair.
	if lo1 != lo2 || hi1 != hi2 {
		t.Errorf("canonicalPair(a,b) = (%s,%s), canonicalPair(b,a) = (%s,%s)", lo1, hi1, lo2, hi2)
	}
	if bytes.Compare(lo1[:], hi1[:]) > 0 {
		t.Errorf("pair not ordered: %s > %s", lo1, hi1)
	}

	// Already-canonical input is a fixed point.
	lo3, hi3 := canonicalPair(lo1, hi1)
	if lo3 != lo1 || hi3 != hi1 {
		t.Errorf("canonicalPair of canonical pair = (%s,%s), want (%s,%s)", lo3, hi3, lo1, hi1)
	}

	self, other := canonicalPair(a, a)
	if self != a || other != a {
		t.Errorf("canonicalPair(a,a) = (%s,%s), want (a,a)", self, other)
	}
}

func TestPrivateMembers(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	a, b = canonicalPair(a, b)

	members := privateMembers(a, b)
	if len(members) != 2 || members[0] != a || members[1] != b {
		t.Errorf("privateMembers(a,b) = %v, want [a b]", members)
	}

	// A self-chat holds exactly one membership row.
	if members := privateMembers(a, a); len(members) != 1 || members[0] != a {
		t.Errorf("privateMembers(a,a) = %v, want [a]", members)
	}
}
