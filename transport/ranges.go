package transport

import "sort"

// rangeInterval is an inclusive range of packet numbers [start, end].
type rangeInterval struct {
	start, end uint64
}

// rangeSet is a sorted, disjoint, ascending set of packet-number intervals.
// It backs both the receiver's "packets needing ACK" bookkeeping (§4.3 ACK
// generation) and the wire ACK Range list (newest-first on the wire, kept
// ascending in memory and reversed only at encode/decode time).
type rangeSet []rangeInterval

// push records pn as received, merging with adjacent/overlapping ranges.
func (rs *rangeSet) push(pn uint64) {
	rs.pushRange(pn, pn)
}

func (rs *rangeSet) pushRange(start, end uint64) {
	s := *rs
	i := sort.Search(len(s), func(i int) bool { return s[i].end+1 >= start })
	if i == len(s) {
		s = append(s, rangeInterval{start, end})
		*rs = s
		return
	}
	if s[i].start > end+1 {
		s = append(s, rangeInterval{})
		copy(s[i+1:], s[i:])
		s[i] = rangeInterval{start, end}
		*rs = s
		return
	}
	if start < s[i].start {
		s[i].start = start
	}
	if end > s[i].end {
		s[i].end = end
	}
	// Merge with any following ranges now reachable.
	j := i + 1
	for j < len(s) && s[j].start <= s[i].end+1 {
		if s[j].end > s[i].end {
			s[i].end = s[j].end
		}
		j++
	}
	s = append(s[:i+1], s[j:]...)
	*rs = s
}

// contains reports whether pn falls within any recorded range.
func (rs rangeSet) contains(pn uint64) bool {
	for _, r := range rs {
		if pn >= r.start && pn <= r.end {
			return true
		}
		if pn < r.start {
			return false
		}
	}
	return false
}

func (rs rangeSet) empty() bool {
	return len(rs) == 0
}

func (rs rangeSet) largest() uint64 {
	if len(rs) == 0 {
		return 0
	}
	return rs[len(rs)-1].end
}

func (rs rangeSet) smallest() uint64 {
	if len(rs) == 0 {
		return 0
	}
	return rs[0].start
}

// removeUntil drops any range (or portion of a range) at or below largest.
// Used once an ACK frame is itself acknowledged: older ranges no longer
// need to be retransmitted in future ACKs.
func (rs *rangeSet) removeUntil(largest uint64) {
	s := *rs
	i := 0
	for i < len(s) && s[i].end <= largest {
		i++
	}
	if i < len(s) && s[i].start <= largest {
		s[i].start = largest + 1
	}
	*rs = s[i:]
}

// numRanges returns how many disjoint gaps separate the ranges (ranges-1),
// i.e. the number of ACK Range entries beyond the first range.
func (rs rangeSet) numRanges() int {
	if len(rs) == 0 {
		return 0
	}
	return len(rs) - 1
}
