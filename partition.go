package batchgen

// splitRows partitions the row range [0, n) into parts contiguous, disjoint
// chunks whose sizes differ by at most one (the first n%parts chunks get the
// extra row). parts is clamped to n; empty chunks are never produced.
func splitRows(n, parts int) [][]int {
	if parts > n {
		parts = n
	}
	if parts < 1 {
		parts = 1
	}
	chunks := make([][]int, 0, parts)
	base, rem := n/parts, n%parts
	start := 0
	for c := 0; c < parts; c++ {
		size := base
		if c < rem {
			size++
		}
		rows := make([]int, size)
		for i := range rows {
			rows[i] = start + i
		}
		chunks = append(chunks, rows)
		start += size
	}
	return chunks
}
