package batchgen

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestSplitRows(t *testing.T) {
	cases := []struct {
		n, parts int
		want     [][]int
	}{
		{4, 2, [][]int{{0, 1}, {2, 3}}},
		{5, 2, [][]int{{0, 1, 2}, {3, 4}}},
		{3, 5, [][]int{{0}, {1}, {2}}},
		{6, 1, [][]int{{0, 1, 2, 3, 4, 5}}},
		{7, 3, [][]int{{0, 1, 2}, {3, 4}, {5, 6}}},
		{1, 1, [][]int{{0}}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, splitRows(c.n, c.parts))
	}
}

func TestSplitRowsCoversRangeExactly(t *testing.T) {
	for n := 1; n <= 12; n++ {
		for parts := 1; parts <= 6; parts++ {
			seen := make(map[int]bool)
			for _, rows := range splitRows(n, parts) {
				assert.True(t, len(rows) > 0)
				for _, r := range rows {
					assert.False(t, seen[r])
					seen[r] = true
				}
			}
			assert.Equal(t, n, len(seen))
		}
	}
}
