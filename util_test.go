package pvec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaxForShift(t *testing.T) {
	for _, tc := range []struct {
		bitWidth uint
		shift    uint
		expected uint64
	}{
		{1, 0, 2},
		{1, 1, 4},
		{1, 10, 2048},
		{2, 0, 4},
		{2, 2, 16},
		{2, 4, 64},
		{3, 0, 8},
		{3, 3, 64},
		{5, 0, 32},
		{5, 5, 1024},
		{5, 10, 32768},
		{8, 48, 72057594037927936},
		// at and past 64 shifted bits the count saturates
		{8, 56, math.MaxUint64},
		{5, 60, math.MaxUint64},
	} {
		require.Equal(t, tc.expected, maxForShift(tc.bitWidth, tc.shift),
			"maxForShift(%d, %d)", tc.bitWidth, tc.shift)
	}
}
