package fuzzer

import (
	"encoding/binary"
	"fmt"

	cbg "github.com/whyrusleeping/cbor-gen"
)

var Debug = false

type opCode byte

const (
	opPush opCode = iota
	opPop
	opNth
	opUpdate
	opPeek
	opRightSlice
	opFlush
	opReload
	opMax
)

type op struct {
	code  opCode
	key   uint64
	value cbg.CborInt
}

func Parse(data []byte) (ops []op) {
	scratch := make([]byte, 17)

	for len(data) > 0 {
		n := copy(scratch, data)
		data = data[n:]

		code := opCode(scratch[0] % byte(opMax))
		k := binary.LittleEndian.Uint64(scratch[1:])
		v := binary.LittleEndian.Uint64(scratch[9:])
		ops = append(ops, op{code, k, cbg.CborInt(v)})
	}
	return ops
}

func Fuzz(data []byte) int {
	if len(data) < 2 {
		return -1
	}

	bitWidth := uint(data[0]%8) + 1
	vec, err := newCheckedVector(bitWidth)
	if err != nil {
		panic("failed to construct vector")
	}
	for _, op := range Parse(data[1:]) {
		switch op.code {
		case opPush:
			vec.push(op.value)
		case opPop:
			vec.pop()
		case opNth:
			vec.nth(op.key)
		case opUpdate:
			vec.update(op.key, op.value)
		case opPeek:
			vec.peek()
		case opRightSlice:
			vec.rightSlice(op.key)
		case opFlush:
			vec.flush()
		case opReload:
			vec.reload()
		default:
			panic("impossible")
		}
	}
	if Debug {
		fmt.Printf("checking\n")
	}
	vec.check()
	return 0
}
