package keyspace

import "fmt"

// Range is a half-open interval [Start, End) of path indexes owned by one worker.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of indexes in the range.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Empty reports whether the range holds no index.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Contains reports whether index lies inside the range.
func (r Range) Contains(index int64) bool {
	return index >= r.Start && index < r.End
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Partition splits [0, total) into workers contiguous ranges.
func Partition(total int64, workers int) ([]Range, error) {
	return PartitionSpan(0, total, workers)
}

// PartitionSpan splits [start, end) into workers contiguous, non-overlapping
// ranges. Each range gets (end-start)/workers indexes and the last range
// absorbs the remainder. When the span is smaller than the worker count the
// leading ranges are empty.
func PartitionSpan(start, end int64, workers int) ([]Range, error) {
	if workers < 1 {
		return nil, ErrInvalidWorkers
	}
	if start < 0 || start > end {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidSpan, start, end)
	}

	size := (end - start) / int64(workers)
	ranges := make([]Range, workers)
	for i := range ranges {
		lo := start + int64(i)*size
		hi := lo + size
		if i == workers-1 {
			hi = end
		}
		ranges[i] = Range{Start: lo, End: hi}
	}
	return ranges, nil
}
