package channelbuffer

import "sort"

// segment is one pending, not-yet-flushed write: data at a byte offset
// within a file's logical content.
type segment struct {
	offset int64
	data   []byte
}

func (s segment) end() int64 { return s.offset + int64(len(s.data)) }

// insertSegment inserts a new segment into an offset-sorted list,
// merging it with any overlapping or directly adjacent neighbors so
// sequential writes coalesce into one segment. The newest write wins
// on overlap, matching last-writer-wins semantics for concurrent
// partial overwrites of the same range.
func insertSegment(segs []segment, next segment) []segment {
	if len(next.data) == 0 {
		return segs
	}

	merged := make([]segment, 0, len(segs)+1)
	inserted := false
	for _, s := range segs {
		if s.end() < next.offset || s.offset > next.end() {
			if !inserted && next.offset < s.offset {
				merged = append(merged, next)
				inserted = true
			}
			merged = append(merged, s)
			continue
		}
		// Overlapping or adjacent: merge s and next into a single
		// span, keeping next's bytes wherever both cover the same
		// offset.
		next = mergeSpan(s, next)
	}
	if !inserted {
		merged = append(merged, next)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].offset < merged[j].offset })
	return merged
}

func mergeSpan(old, next segment) segment {
	start := old.offset
	if next.offset < start {
		start = next.offset
	}
	end := old.end()
	if next.end() > end {
		end = next.end()
	}
	buf := make([]byte, end-start)
	copy(buf[old.offset-start:], old.data)
	copy(buf[next.offset-start:], next.data)
	return segment{offset: start, data: buf}
}

func totalBytes(segs []segment) int {
	n := 0
	for _, s := range segs {
		n += len(s.data)
	}
	return n
}

// copyOverlap copies src (logically placed at srcOffset) onto dst
// (logically placed starting at dstBase), wherever their ranges
// intersect.
func copyOverlap(dst []byte, dstBase int64, src []byte, srcOffset int64) {
	dstEnd := dstBase + int64(len(dst))
	srcEnd := srcOffset + int64(len(src))

	lo := dstBase
	if srcOffset > lo {
		lo = srcOffset
	}
	hi := dstEnd
	if srcEnd < hi {
		hi = srcEnd
	}
	if lo >= hi {
		return
	}
	copy(dst[lo-dstBase:hi-dstBase], src[lo-srcOffset:hi-srcOffset])
}

// affectedChunks returns every chunk index touched by segs, sorted.
func affectedChunks(segs []segment, chunkSize int64) []int64 {
	seen := make(map[int64]bool)
	for _, s := range segs {
		first := s.offset / chunkSize
		last := (s.end() - 1) / chunkSize
		for idx := first; idx <= last; idx++ {
			seen[idx] = true
		}
	}
	out := make([]int64, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// dropSegments removes every segment in flushed from current, by
// identity of their data pointer. Segments appended to current
// after flushed was snapshotted are preserved.
func dropSegments(current, flushed []segment) []segment {
	if len(flushed) == 0 {
		return current
	}
	flushedSet := make(map[*byte]bool, len(flushed))
	for _, s := range flushed {
		if len(s.data) > 0 {
			flushedSet[&s.data[0]] = true
		}
	}
	out := current[:0:0]
	for _, s := range current {
		if len(s.data) > 0 && flushedSet[&s.data[0]] {
			continue
		}
		out = append(out, s)
	}
	return out
}
