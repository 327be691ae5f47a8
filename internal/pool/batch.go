package pool

// Partition splits targets into contiguous batches of at most size elements,
// preserving input order. The last batch may be short. An empty input or a
// non-positive size yields no batches.
func Partition[T any](targets []T, size int) [][]T {
	if len(targets) == 0 || size <= 0 {
		return nil
	}

	batches := make([][]T, 0, (len(targets)+size-1)/size)
	for start := 0; start < len(targets); start += size {
		end := start + size
		if end > len(targets) {
			end = len(targets)
		}
		batches = append(batches, targets[start:end])
	}
	return batches
}
