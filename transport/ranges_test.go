package transport

import "testing"

func TestRangeSetPushMerge(t *testing.T) {
	var rs rangeSet
	rs.push(5)
	rs.push(3)
	rs.push(4)
	rs.push(10)
	want := rangeSet{{3, 5}, {10, 10}}
	if !rangeSetEqual(rs, want) {
		t.Fatalf("got %v, want %v", rs, want)
	}
}

func TestRangeSetPushRangeJoinsGap(t *testing.T) {
	var rs rangeSet
	rs.pushRange(1, 3)
	rs.pushRange(6, 8)
	rs.pushRange(4, 5) // exactly bridges the gap between the two ranges
	want := rangeSet{{1, 8}}
	if !rangeSetEqual(rs, want) {
		t.Fatalf("got %v, want %v", rs, want)
	}
}

func TestRangeSetContains(t *testing.T) {
	var rs rangeSet
	rs.pushRange(10, 20)
	for _, pn := range []uint64{10, 15, 20} {
		if !rs.contains(pn) {
			t.Fatalf("contains(%d) = false, want true", pn)
		}
	}
	for _, pn := range []uint64{9, 21, 1000} {
		if rs.contains(pn) {
			t.Fatalf("contains(%d) = true, want false", pn)
		}
	}
}

func TestRangeSetRemoveUntil(t *testing.T) {
	var rs rangeSet
	rs.pushRange(1, 5)
	rs.pushRange(10, 15)
	rs.removeUntil(12)
	want := rangeSet{{13, 15}}
	if !rangeSetEqual(rs, want) {
		t.Fatalf("got %v, want %v", rs, want)
	}
}

func TestRangeSetSmallestLargestEmpty(t *testing.T) {
	var rs rangeSet
	if !rs.empty() {
		t.Fatal("empty() = false on zero value")
	}
	if rs.smallest() != 0 || rs.largest() != 0 {
		t.Fatal("smallest/largest on empty set should be 0")
	}
	rs.pushRange(7, 9)
	if rs.smallest() != 7 || rs.largest() != 9 {
		t.Fatalf("smallest/largest = %d/%d, want 7/9", rs.smallest(), rs.largest())
	}
}

func TestRangeSetNumRanges(t *testing.T) {
	var rs rangeSet
	rs.push(1)
	rs.push(3)
	rs.push(5)
	if n := rs.numRanges(); n != 2 {
		t.Fatalf("numRanges() = %d, want 2", n)
	}
}

func rangeSetEqual(a, b rangeSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
