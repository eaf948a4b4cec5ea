package transport

// rangeInterval is a half-open interval [start, start+length).
type rangeInterval struct {
	start  uint64
	length uint64
}

func (r rangeInterval) end() uint64 {
	return r.start + r.length
}

// rangeSet is an ordered sequence of disjoint, coalesced half-open
// integer ranges, ascending by start. It backs both received-packet-number
// tracking and decoded ACK ranges (spec section 3, "Range set").
type rangeSet struct {
	ranges []rangeInterval
}

// add inserts [start, start+length) into the set, merging with any
// overlapping or adjacent existing ranges. It reports whether the insert
// extended the last (highest) existing range, which callers use to avoid
// re-walking the whole set when packet numbers arrive in order.
func (s *rangeSet) add(start, length uint64) (extendedLast bool) {
	if length == 0 {
		return false
	}
	end := start + length
	if n := len(s.ranges); n > 0 {
		last := &s.ranges[n-1]
		if start <= last.end() && end > last.start {
			if end > last.end() {
				last.length = end - last.start
			}
			if start < last.start {
				last.length += last.start - start
				last.start = start
			}
			return true
		}
		if start > last.end() {
			s.ranges = append(s.ranges, rangeInterval{start: start, length: length})
			return false
		}
	} else {
		s.ranges = append(s.ranges, rangeInterval{start: start, length: length})
		return false
	}
	// Slow path: insertion somewhere before the tail. Find the first
	// range whose end is >= start.
	i := 0
	for ; i < len(s.ranges); i++ {
		if s.ranges[i].end() >= start {
			break
		}
	}
	if i == len(s.ranges) || s.ranges[i].start > end {
		// No overlap: insert a new range at i.
		s.ranges = append(s.ranges, rangeInterval{})
		copy(s.ranges[i+1:], s.ranges[i:])
		s.ranges[i] = rangeInterval{start: start, length: length}
		return false
	}
	// Overlaps s.ranges[i]; extend it and absorb any following ranges it
	// now subsumes.
	if start < s.ranges[i].start {
		s.ranges[i].length += s.ranges[i].start - start
		s.ranges[i].start = start
	}
	if end > s.ranges[i].end() {
		s.ranges[i].length = end - s.ranges[i].start
	}
	j := i + 1
	for j < len(s.ranges) && s.ranges[j].start <= s.ranges[i].end() {
		if s.ranges[j].end() > s.ranges[i].end() {
			s.ranges[i].length = s.ranges[j].end() - s.ranges[i].start
		}
		j++
	}
	s.ranges = append(s.ranges[:i+1], s.ranges[j:]...)
	return false
}

// contains reports whether n falls in any range of the set.
func (s *rangeSet) contains(n uint64) bool {
	for _, r := range s.ranges {
		if n >= r.start && n < r.end() {
			return true
		}
		if n < r.start {
			break
		}
	}
	return false
}

// max returns the highest value in the set (inclusive) and whether the
// set is non-empty.
func (s *rangeSet) max() (uint64, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	last := s.ranges[len(s.ranges)-1]
	return last.end() - 1, true
}

// min returns the lowest value in the set and whether the set is
// non-empty.
func (s *rangeSet) min() (uint64, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[0].start, true
}

// removeUntil drops every value < threshold from the set. Used to retire
// ACK ranges once the peer has confirmed it will not need them
// retransmitted, and to forget fully-acknowledged received-packet state.
func (s *rangeSet) removeUntil(threshold uint64) {
	i := 0
	for ; i < len(s.ranges); i++ {
		if s.ranges[i].end() > threshold {
			break
		}
	}
	s.ranges = s.ranges[i:]
	if len(s.ranges) > 0 && s.ranges[0].start < threshold {
		s.ranges[0].length -= threshold - s.ranges[0].start
		s.ranges[0].start = threshold
	}
}

// len returns the number of disjoint ranges.
func (s *rangeSet) len() int {
	return len(s.ranges)
}

// at returns the i-th range, ascending order.
func (s *rangeSet) at(i int) (start, length uint64) {
	r := s.ranges[i]
	return r.start, r.length
}

func (s *rangeSet) empty() bool {
	return len(s.ranges) == 0
}

func (s *rangeSet) reset() {
	s.ranges = s.ranges[:0]
}

// equal reports whether two range sets describe the same values, used by
// round-trip tests (spec testable property 9).
func (s *rangeSet) equal(o *rangeSet) bool {
	if len(s.ranges) != len(o.ranges) {
		return false
	}
	for i := range s.ranges {
		if s.ranges[i] != o.ranges[i] {
			return false
		}
	}
	return true
}
