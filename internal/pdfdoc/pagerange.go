package pdfdoc

// ResolvePageRange clamps a requested [start, end) range to a document of
// total pages. Nil or negative start becomes 0, nil or oversized end becomes
// total. empty reports a degenerate range, which callers treat as zero pages.
func ResolvePageRange(start, end *int, total int) (s, e int, empty bool) {
	if total < 0 {
		total = 0
	}
	if start != nil && *start > 0 {
		s = *start
	}
	e = total
	if end != nil && *end < total {
		e = *end
	}
	if s >= e {
		return 0, 0, true
	}
	return s, e, false
}

// Pages returns a pointer pair for ResolvePageRange, handy at call sites
// that know both bounds.
func Pages(start, end int) (*int, *int) { return &start, &end }
