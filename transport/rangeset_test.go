package transport

import "testing"

func TestRangeSetAddDisjoint(t *testing.T) {
	var rs rangeSet
	rs.add(10, 5)
	rs.add(20, 5)
	if rs.len() != 2 {
		t.Fatalf("len = %d, want 2", rs.len())
	}
	if !rs.contains(12) || rs.contains(16) || !rs.contains(24) {
		t.Fatalf("contains mismatch: %+v", rs.ranges)
	}
}

func TestRangeSetAddMergeAdjacent(t *testing.T) {
	var rs rangeSet
	rs.add(0, 5)  // [0,5)
	rs.add(5, 5)  // adjacent -> [0,10)
	if rs.len() != 1 {
		t.Fatalf("len = %d, want 1", rs.len())
	}
	max, ok := rs.max()
	if !ok || max != 9 {
		t.Fatalf("max = %d, ok=%v, want 9", max, ok)
	}
}

func TestRangeSetAddOverlapMiddle(t *testing.T) {
	var rs rangeSet
	rs.add(0, 5)   // [0,5)
	rs.add(20, 5)  // [20,25)
	rs.add(40, 5)  // [40,45)
	rs.add(3, 20)  // [3,23) overlaps first two, joins them
	if rs.len() != 2 {
		t.Fatalf("len = %d, want 2, ranges=%+v", rs.len(), rs.ranges)
	}
	start, length := rs.at(0)
	if start != 0 || length != 23 {
		t.Fatalf("got start=%d length=%d, want 0,23", start, length)
	}
}

func TestRangeSetRemoveUntil(t *testing.T) {
	var rs rangeSet
	rs.add(0, 5)
	rs.add(10, 5)
	rs.removeUntil(3)
	if rs.contains(0) || rs.contains(2) {
		t.Fatalf("expected 0-2 removed, ranges=%+v", rs.ranges)
	}
	if !rs.contains(3) || !rs.contains(4) {
		t.Fatalf("expected 3-4 retained, ranges=%+v", rs.ranges)
	}
	rs.removeUntil(10)
	if rs.len() != 1 {
		t.Fatalf("len = %d, want 1", rs.len())
	}
	min, _ := rs.min()
	if min != 10 {
		t.Fatalf("min = %d, want 10", min)
	}
}

func TestRangeSetEmptyAndEqual(t *testing.T) {
	var a, b rangeSet
	if !a.empty() {
		t.Fatalf("expected empty")
	}
	a.add(1, 3)
	b.add(1, 3)
	if !a.equal(&b) {
		t.Fatalf("expected equal")
	}
	b.add(10, 1)
	if a.equal(&b) {
		t.Fatalf("expected not equal")
	}
	a.reset()
	if !a.empty() {
		t.Fatalf("expected empty after reset")
	}
}
