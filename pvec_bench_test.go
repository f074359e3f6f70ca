package pvec

import (
	"context"
	"testing"

	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"
)

var benchBitWidths = []uint{2, 3, 5, 8}

func benchVector(b *testing.B, n int, opts ...Option) *Vector {
	b.Helper()
	v, err := New(opts...)
	require.NoError(b, err)
	for k := 0; k < n; k++ {
		v = v.Push(k)
	}
	return v
}

func BenchmarkPush(b *testing.B) {
	runBenchmarkWithBitWidths(b, benchBitWidths, func(b *testing.B, opts ...Option) {
		v, err := New(opts...)
		require.NoError(b, err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			v = v.Push(i)
		}
	})
}

func BenchmarkNth(b *testing.B) {
	runBenchmarkWithBitWidths(b, benchBitWidths, func(b *testing.B, opts ...Option) {
		const size = 1 << 14
		v := benchVector(b, size, opts...)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := v.Nth(uint64(i % size)); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkUpdate(b *testing.B) {
	runBenchmarkWithBitWidths(b, benchBitWidths, func(b *testing.B, opts ...Option) {
		const size = 1 << 14
		v := benchVector(b, size, opts...)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := v.Update(uint64(i%size), -1); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkPushPop(b *testing.B) {
	runBenchmarkWithBitWidths(b, benchBitWidths, func(b *testing.B, opts ...Option) {
		const size = 1 << 12
		v := benchVector(b, size, opts...)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			w, err := v.Push(i).Pop()
			if err != nil {
				b.Fatal(err)
			}
			_ = w
		}
	})
}

func BenchmarkForEach(b *testing.B) {
	runBenchmarkWithBitWidths(b, benchBitWidths, func(b *testing.B, opts ...Option) {
		const size = 1 << 14
		v := benchVector(b, size, opts...)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var sum int
			err := v.ForEach(func(_ uint64, val interface{}) error {
				sum += val.(int)
				return nil
			})
			if err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkFlush(b *testing.B) {
	runBenchmarkWithBitWidths(b, benchBitWidths, func(b *testing.B, opts ...Option) {
		ctx := context.Background()
		v, err := New(opts...)
		require.NoError(b, err)
		for k := 0; k < 1<<12; k++ {
			val := cbg.CborInt(k)
			v = v.Push(&val)
		}
		bs := cbor.NewCborStore(newMockBlocks())
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := v.Flush(ctx, bs); err != nil {
				b.Fatal(err)
			}
		}
	})
}
