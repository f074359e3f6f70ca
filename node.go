package pvec

import (
	"errors"
	"fmt"
)

// node is the atomic structural unit of the trie: a fixed-length array of
// 1<<bitWidth slots. A slot holds a *node at interior levels, a caller
// element at the leaf level, or nil when absent. Nodes carry no tag for
// interior-vs-leaf; the remaining shift of the descent decides.
type node struct {
	slots []interface{}
}

var (
	errEmptyNode      = errors.New("unexpected empty vector node")
	errUndefinedCID   = errors.New("vector node has undefined CID")
	errLinksAndValues = errors.New("vector node has both links and values")
	errLeafUnexpected = errors.New("vector leaf not expected at height")
	errLeafExpected   = errors.New("vector leaf expected at height")
	errInvalidCount   = errors.New("vector count does not match number of elements")
	errInvalidShift   = errors.New("vector shift is not a multiple of the bit width")
	errNotCompact     = errors.New("vector tree is taller than its count requires")
	errNotDense       = errors.New("vector node has a gap before its last populated slot")
)

func newNode(width uint64) *node {
	return &node{slots: make([]interface{}, width)}
}

// clone produces an independent copy of the slot array. Children are shared
// by reference; callers replace exactly the slots they intend to rewrite.
func (n *node) clone() *node {
	m := &node{slots: make([]interface{}, len(n.slots))}
	copy(m.slots, n.slots)
	return m
}

// child returns slot i as an interior node. Only valid while the descent's
// remaining shift is nonzero and the slot is populated.
func (n *node) child(i uint64) *node {
	return n.slots[i].(*node)
}

// forEachAt walks the subtree in index order. shift is the bit offset of
// this node's level, offset the index of its first reachable element; all
// elements below start are skipped.
func (n *node) forEachAt(bitWidth, shift uint, start, offset uint64, cb func(uint64, interface{}) error) error {
	if shift == 0 {
		for i, val := range n.slots {
			if val == nil {
				continue
			}
			ix := offset + uint64(i)
			if ix < start {
				continue
			}
			if err := cb(ix, val); err != nil {
				return err
			}
		}
		return nil
	}

	// Each child at this level spans 1<<shift indices.
	subCount := uint64(1) << shift
	for i, s := range n.slots {
		if s == nil {
			continue
		}
		offs := offset + uint64(i)*subCount
		if start >= offs+subCount {
			continue
		}
		if err := s.(*node).forEachAt(bitWidth, shift-bitWidth, start, offs, cb); err != nil {
			return err
		}
	}
	return nil
}

func bmapBytes(width uint64) int {
	return int((width + 7) / 8)
}

func makeBmap(width uint64) []byte {
	return make([]byte, bmapBytes(width))
}

func checkBmap(bf []byte, width uint64) error {
	expLen := bmapBytes(width)
	if len(bf) != expLen {
		return fmt.Errorf(
			"expected bitfield to be %d bytes long, found bitfield with %d bytes",
			expLen, len(bf),
		)
	}
	rem := width % 8
	if rem == 0 {
		return nil
	}
	expUnset := 8 - rem
	if bf[len(bf)-1]&^(uint8(0xff)>>uint(expUnset)) > 0 {
		return fmt.Errorf("expected top %d bits of bitfield to be unset (width %d): %#b", expUnset, width, bf[len(bf)-1])
	}
	return nil
}

func getBit(bf []byte, i uint64) bool {
	return bf[i/8]&(1<<(i%8)) > 0
}

func setBit(bf []byte, i uint64) {
	bf[i/8] |= 1 << (i % 8)
}
