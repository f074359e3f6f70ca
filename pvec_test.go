package pvec

import (
	"fmt"
	"testing"

	assert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bitWidths1to6 = []uint{1, 2, 3, 4, 5, 6}
	bitWidths1to3 = []uint{1, 2, 3}
)

func runTestWithBitWidths(t *testing.T, bitwidths []uint, fn func(*testing.T, ...Option)) {
	t.Helper()
	if testing.Short() {
		t.Run(fmt.Sprintf("bitwidth=%d", defaultBitWidth), func(t *testing.T) { fn(t, UseTreeBitWidth(defaultBitWidth)) })
		return
	}
	for _, bw := range bitwidths {
		t.Run(fmt.Sprintf("bitwidth=%d", bw), func(t *testing.T) { fn(t, UseTreeBitWidth(bw)) })
	}
}

func runBenchmarkWithBitWidths(b *testing.B, bitwidths []uint, fn func(*testing.B, ...Option)) {
	b.Helper()
	for _, bw := range bitwidths {
		b.Run(fmt.Sprintf("bitwidth=%d", bw), func(b *testing.B) { fn(b, UseTreeBitWidth(bw)) })
	}
}

func assertCount(t testing.TB, v *Vector, c uint64) {
	t.Helper()
	require.Equal(t, c, v.Count())
}

func assertNth(t testing.TB, v *Vector, i uint64, val interface{}) {
	t.Helper()
	got, err := v.Nth(i)
	require.NoError(t, err)
	require.Equal(t, val, got)
}

// assertSeq checks by full traversal that v holds exactly vals, both through
// Nth and through ForEach.
func assertSeq(t testing.TB, v *Vector, vals []interface{}) {
	t.Helper()
	assertCount(t, v, uint64(len(vals)))
	for i, val := range vals {
		assertNth(t, v, uint64(i), val)
	}
	next := uint64(0)
	require.NoError(t, v.ForEach(func(i uint64, val interface{}) error {
		require.Equal(t, next, i)
		require.Equal(t, vals[i], val)
		next++
		return nil
	}))
	require.Equal(t, uint64(len(vals)), next)
}

// assertWellFormed checks the structural bookkeeping of a head: shift
// alignment, height compactness, and that no slot is populated at or beyond
// the count.
func assertWellFormed(t testing.TB, v *Vector) {
	t.Helper()
	require.Zero(t, v.shift%v.bitWidth)
	require.LessOrEqual(t, v.count, maxForShift(v.bitWidth, v.shift))
	if v.shift > 0 {
		require.Greater(t, v.count, uint64(1)<<v.shift)
	}
	seen := uint64(0)
	require.NoError(t, v.ForEach(func(i uint64, _ interface{}) error {
		require.Less(t, i, v.count)
		seen++
		return nil
	}))
	require.Equal(t, v.count, seen)
}

func pushSeq(t testing.TB, v *Vector, from, to int) *Vector {
	t.Helper()
	for k := from; k < to; k++ {
		v = v.Push(k)
	}
	return v
}

func seq(from, to int) []interface{} {
	vals := make([]interface{}, 0, to-from)
	for k := from; k < to; k++ {
		vals = append(vals, k)
	}
	return vals
}

func TestNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		v, err := New()
		require.NoError(t, err)
		assert.Equal(t, defaultBitWidth, v.BitWidth())
		assertCount(t, v, 0)
	})

	t.Run("explicit bitwidth", func(t *testing.T) {
		v, err := New(UseTreeBitWidth(4))
		require.NoError(t, err)
		assert.Equal(t, uint(4), v.BitWidth())
	})

	t.Run("invalid bitwidth", func(t *testing.T) {
		_, err := New(UseTreeBitWidth(0))
		require.Error(t, err)
		_, err = New(UseTreeBitWidth(MaxBitWidth + 1))
		require.Error(t, err)
	})
}

func TestEmpty(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to6, func(t *testing.T, opts ...Option) {
		v, err := New(opts...)
		require.NoError(t, err)

		assertCount(t, v, 0)
		assertWellFormed(t, v)

		_, err = v.Nth(0)
		require.ErrorIs(t, err, ErrIndexOutOfRange)

		_, err = v.Peek()
		require.ErrorIs(t, err, ErrEmptyVector)

		_, err = v.Pop()
		require.ErrorIs(t, err, ErrEmptyVector)

		same, err := v.RightSlice(0)
		require.NoError(t, err)
		assertCount(t, same, 0)

		_, err = v.RightSlice(1)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestPushReadBack(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to6, func(t *testing.T, opts ...Option) {
		v, err := New(opts...)
		require.NoError(t, err)

		const num = 1000
		v = pushSeq(t, v, 0, num)
		assertSeq(t, v, seq(0, num))
		assertWellFormed(t, v)

		last, err := v.Peek()
		require.NoError(t, err)
		require.Equal(t, num-1, last)
	})
}

// Earlier versions of an append-only sequence must stay valid as later
// versions grow past them.
func TestPushPreservesOldVersions(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to3, func(t *testing.T, opts ...Option) {
		v, err := New(opts...)
		require.NoError(t, err)

		const num = 200
		versions := make([]*Vector, 0, num+1)
		versions = append(versions, v)
		for k := 0; k < num; k++ {
			v = v.Push(k)
			versions = append(versions, v)
		}

		for n, version := range versions {
			assertSeq(t, version, seq(0, n))
			assertWellFormed(t, version)
		}
	})
}

func TestUpdate(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to6, func(t *testing.T, opts ...Option) {
		const num = 300
		v, err := New(opts...)
		require.NoError(t, err)
		v = pushSeq(t, v, 0, num)

		for _, i := range []uint64{0, 1, num / 2, num - 2, num - 1} {
			w, err := v.Update(i, "changed")
			require.NoError(t, err)

			assertNth(t, w, i, "changed")
			for j := uint64(0); j < num; j++ {
				if j == i {
					continue
				}
				assertNth(t, w, j, int(j))
			}

			// the receiver must be untouched
			assertSeq(t, v, seq(0, num))
			assertWellFormed(t, w)
		}

		_, err = v.Update(num, "nope")
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestPushPopInverse(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to3, func(t *testing.T, opts ...Option) {
		for _, size := range []int{0, 1, 2, 3, 4, 5, 7, 8, 9, 15, 16, 17, 63, 64, 65, 100} {
			v, err := New(opts...)
			require.NoError(t, err)
			v = pushSeq(t, v, 0, size)

			w, err := v.Push("extra").Pop()
			require.NoError(t, err)

			assertSeq(t, w, seq(0, size))
			assertWellFormed(t, w)
			// and the starting version is still intact
			assertSeq(t, v, seq(0, size))
		}
	})
}

func TestPopToEmpty(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to3, func(t *testing.T, opts ...Option) {
		const num = 70
		v, err := New(opts...)
		require.NoError(t, err)
		v = pushSeq(t, v, 0, num)

		for n := num; n > 0; n-- {
			var err error
			v, err = v.Pop()
			require.NoError(t, err)
			assertSeq(t, v, seq(0, n-1))
			assertWellFormed(t, v)
		}

		_, err = v.Pop()
		require.ErrorIs(t, err, ErrEmptyVector)
	})
}

// expectedShift returns the minimal shift whose tree holds count elements.
func expectedShift(bitWidth uint, count uint64) uint {
	shift := uint(0)
	for count > maxForShift(bitWidth, shift) {
		shift += bitWidth
	}
	return shift
}

func TestHeightGrowthBoundary(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to3, func(t *testing.T, opts ...Option) {
		v, err := New(opts...)
		require.NoError(t, err)

		const num = 600
		for k := 0; k < num; k++ {
			before := v.shift
			v = v.Push(k)
			require.Equal(t, expectedShift(v.bitWidth, v.count), v.shift,
				"wrong shift at count %d", v.count)
			if v.shift != before {
				// growth must be a single level, exactly when the
				// old tree was full
				require.Equal(t, before+v.bitWidth, v.shift)
				require.Equal(t, maxForShift(v.bitWidth, before), v.count-1)
			}
		}
	})
}

func TestRightSliceLaws(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to3, func(t *testing.T, opts ...Option) {
		const num = 100
		v, err := New(opts...)
		require.NoError(t, err)
		v = pushSeq(t, v, 0, num)

		full, err := v.RightSlice(num)
		require.NoError(t, err)
		assertSeq(t, full, seq(0, num))

		for n := uint64(0); n <= num; n++ {
			w, err := v.RightSlice(n)
			require.NoError(t, err)
			assertSeq(t, w, seq(0, int(n)))
			assertWellFormed(t, w)
		}

		// the source version survives every slice
		assertSeq(t, v, seq(0, num))

		_, err = v.RightSlice(num + 1)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

// Pushing 1..100 at branching factor 4 and slicing at indexes around the
// level boundaries exercises dense, shrink-only, and prune paths.
func TestRightSliceSmallFanout(t *testing.T) {
	v, err := New(UseTreeBitWidth(2))
	require.NoError(t, err)

	for k := 1; k <= 100; k++ {
		v = v.Push(k)
		for j := uint64(0); j < uint64(k); j++ {
			assertNth(t, v, j, int(j+1))
		}
	}

	for _, n := range []uint64{0, 1, 4, 5, 16, 17, 64, 65} {
		w, err := v.RightSlice(n)
		require.NoError(t, err)
		assertCount(t, w, n)
		for j := uint64(0); j < n; j++ {
			assertNth(t, w, j, int(j+1))
		}
		assertWellFormed(t, w)
	}
}

func TestForEachAt(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to6, func(t *testing.T, opts ...Option) {
		const num = 150
		v, err := New(opts...)
		require.NoError(t, err)
		v = pushSeq(t, v, 0, num)

		for _, start := range []uint64{0, 1, 63, 64, 65, num - 1, num} {
			expect := start
			require.NoError(t, v.ForEachAt(start, func(i uint64, val interface{}) error {
				require.Equal(t, expect, i)
				require.Equal(t, int(i), val)
				expect++
				return nil
			}))
			require.Equal(t, uint64(num), expect)
		}

		stop := fmt.Errorf("stop")
		calls := 0
		err = v.ForEach(func(i uint64, val interface{}) error {
			calls++
			return stop
		})
		require.ErrorIs(t, err, stop)
		require.Equal(t, 1, calls)
	})
}

func TestMixedOperations(t *testing.T) {
	runTestWithBitWidths(t, bitWidths1to3, func(t *testing.T, opts ...Option) {
		v, err := New(opts...)
		require.NoError(t, err)

		model := []interface{}{}
		for step := 0; step < 500; step++ {
			switch {
			case step%7 == 3 && len(model) > 0:
				i := uint64(step) % uint64(len(model))
				v, err = v.Update(i, step)
				require.NoError(t, err)
				model[i] = step
			case step%11 == 5 && len(model) > 0:
				v, err = v.Pop()
				require.NoError(t, err)
				model = model[:len(model)-1]
			case step%23 == 7 && len(model) > 3:
				n := uint64(len(model) / 2)
				v, err = v.RightSlice(n)
				require.NoError(t, err)
				model = model[:n]
			default:
				v = v.Push(step)
				model = append(model, step)
			}
		}
		assertSeq(t, v, model)
		assertWellFormed(t, v)
	})
}
