package pvec

import (
	"bytes"
	"math"
	"sync"

	cbg "github.com/whyrusleeping/cbor-gen"
)

// maxForShift returns how many elements a tree of the given shift can hold,
// branching << shift. The result saturates so the comparison arithmetic in
// the push growth check cannot overflow.
func maxForShift(bitWidth, shift uint) uint64 {
	logTwo := uint64(bitWidth) + uint64(shift)
	if logTwo >= 64 {
		// The deepest representable tree may not be full.
		return math.MaxUint64
	}
	return 1 << logTwo
}

var bufferPool sync.Pool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(nil)
	},
}

func cborToBytes(val cbg.CBORMarshaler) ([]byte, error) {
	// Temporary location to put values. We'll copy them to an exact-sized buffer when done.
	valueBuf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		valueBuf.Reset()
		bufferPool.Put(valueBuf)
	}()

	if err := val.MarshalCBOR(valueBuf); err != nil {
		return nil, err
	}

	// Copy to shrink the allocation.
	buf := valueBuf.Bytes()
	cpy := make([]byte, len(buf))
	copy(cpy, buf)

	return cpy, nil
}
