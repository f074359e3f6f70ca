// Package pvec implements a persistent (immutable, versioned) vector as a
// bitmapped trie with a configurable branching factor. Every mutating
// operation returns a new *Vector and leaves the receiver untouched; the two
// versions share all subtrees off the copied path. Published vectors are
// safe for concurrent readers without coordination.
package pvec

import (
	"errors"
)

var (
	// ErrIndexOutOfRange is returned when an index is at or beyond the
	// vector's count, or when a slice size exceeds it.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrEmptyVector is returned by operations that need at least one
	// element.
	ErrEmptyVector = errors.New("vector is empty")
)

// Vector is one immutable version of a persistent vector. The zero value is
// not usable; construct with New or LoadVector. A Vector is never modified
// after it is returned, so any number of goroutines may read any number of
// versions concurrently.
type Vector struct {
	bitWidth uint
	// count of elements reachable from this head.
	count uint64
	// shift encodes the tree height as bitWidth*(height-1); it drives the
	// bit-group extraction during descent.
	shift uint
	root  *node
}

// New creates an empty vector.
func New(opts ...Option) (*Vector, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &Vector{
		bitWidth: cfg.bitWidth,
		root:     newNode(1 << cfg.bitWidth),
	}, nil
}

// Count returns the number of elements in the vector.
func (v *Vector) Count() uint64 {
	return v.count
}

// BitWidth returns the number of index bits consumed per trie level. The
// branching factor is 1 << BitWidth.
func (v *Vector) BitWidth() uint {
	return v.bitWidth
}

func (v *Vector) branching() uint64 {
	return uint64(1) << v.bitWidth
}

func (v *Vector) mask() uint64 {
	return v.branching() - 1
}

// shallow head copy; the caller overwrites whatever fields change.
func (v *Vector) clone() *Vector {
	next := *v
	return &next
}

// Nth returns the element at index i.
func (v *Vector) Nth(i uint64) (interface{}, error) {
	if i >= v.count {
		return nil, ErrIndexOutOfRange
	}
	n := v.root
	for s := v.shift; s > 0; s -= v.bitWidth {
		n = n.child((i >> s) & v.mask())
	}
	return n.slots[i&v.mask()], nil
}

// Peek returns the last element.
func (v *Vector) Peek() (interface{}, error) {
	if v.count == 0 {
		return nil, ErrEmptyVector
	}
	return v.Nth(v.count - 1)
}

// Update returns a new version with the element at index i replaced by val.
// Exactly the nodes on the path from the root to the touched leaf are
// cloned; every other subtree is shared with the receiver.
func (v *Vector) Update(i uint64, val interface{}) (*Vector, error) {
	if i >= v.count {
		return nil, ErrIndexOutOfRange
	}
	next := v.clone()
	n := v.root.clone()
	next.root = n
	for s := v.shift; s > 0; s -= v.bitWidth {
		sub := (i >> s) & v.mask()
		child := n.child(sub).clone()
		n.slots[sub] = child
		n = child
	}
	n.slots[i&v.mask()] = val
	return next, nil
}

// Push returns a new version with val appended. When the tree is full at the
// current height the root gains a level: the old root becomes child 0 of a
// fresh node and the shift grows by one bit group. The descent then clones
// existing nodes along the new element's path and creates empty ones where
// the path enters previously unused space.
func (v *Vector) Push(val interface{}) *Vector {
	i := v.count
	next := v.clone()
	next.count = v.count + 1
	if v.count == maxForShift(v.bitWidth, v.shift) {
		root := newNode(v.branching())
		root.slots[0] = v.root
		next.root = root
		next.shift = v.shift + v.bitWidth
	} else {
		next.root = v.root.clone()
	}
	n := next.root
	for s := next.shift; s > 0; s -= v.bitWidth {
		sub := (i >> s) & v.mask()
		if n.slots[sub] == nil {
			n.slots[sub] = newNode(v.branching())
		} else {
			n.slots[sub] = n.child(sub).clone()
		}
		n = n.child(sub)
	}
	n.slots[i&v.mask()] = val
	return next
}

// Pop returns a new version with the last element removed. If the remaining
// elements fit entirely inside the root's first child the top level is
// discarded; otherwise the path to the removed element is cloned, pruning
// the whole child slot at the first level where the removed index opens a
// fresh subtree.
func (v *Vector) Pop() (*Vector, error) {
	if v.count == 0 {
		return nil, ErrEmptyVector
	}
	i := v.count - 1
	next := v.clone()
	next.count = i
	// The shift > 0 guard keeps the final pop from shrinking below a
	// single-leaf tree.
	if v.shift > 0 && next.count == uint64(1)<<v.shift {
		next.shift = v.shift - v.bitWidth
		next.root = v.root.child(0)
		return next, nil
	}
	n := v.root.clone()
	next.root = n
	for s := v.shift; s > 0; s -= v.bitWidth {
		sub := (i >> s) & v.mask()
		if i&((uint64(1)<<s)-1) == 0 {
			// Removed index is the first element of this child's
			// subtree, so the child holds nothing else: drop it.
			n.slots[sub] = nil
			return next, nil
		}
		n.slots[sub] = n.child(sub).clone()
		n = n.child(sub)
	}
	n.slots[i&v.mask()] = nil
	return next, nil
}

// RightSlice returns a new version truncated to the first size elements.
// Whole levels are discarded while the result fits inside the root's first
// child; if the result then exactly fills the smaller tree nothing else is
// copied. Otherwise the path toward index size is cloned and every slot to
// the right of it is nulled, releasing all subtrees beyond the boundary.
func (v *Vector) RightSlice(size uint64) (*Vector, error) {
	if size > v.count {
		return nil, ErrIndexOutOfRange
	}
	if size == v.count {
		return v, nil
	}
	next := v.clone()
	next.count = size
	for next.shift > 0 && size <= uint64(1)<<next.shift {
		next.shift -= v.bitWidth
		next.root = next.root.child(0)
	}
	if size == maxForShift(v.bitWidth, next.shift) {
		return next, nil
	}
	n := next.root.clone()
	next.root = n
	for s := next.shift; s > 0; s -= v.bitWidth {
		sub := (size >> s) & v.mask()
		if size&((uint64(1)<<s)-1) == 0 {
			// Index size is the first element of this child's
			// subtree: the child and everything right of it lie
			// entirely beyond the boundary.
			for j := sub; j < v.branching(); j++ {
				n.slots[j] = nil
			}
			return next, nil
		}
		child := n.child(sub).clone()
		n.slots[sub] = child
		for j := sub + 1; j < v.branching(); j++ {
			n.slots[j] = nil
		}
		n = child
	}
	for j := size & v.mask(); j < v.branching(); j++ {
		n.slots[j] = nil
	}
	return next, nil
}

// ForEach iterates over all elements in index order, calling cb with each
// index and element. Returning an error from cb aborts the iteration and
// propagates the error.
func (v *Vector) ForEach(cb func(uint64, interface{}) error) error {
	return v.root.forEachAt(v.bitWidth, v.shift, 0, 0, cb)
}

// ForEachAt behaves like ForEach but starts at index start.
func (v *Vector) ForEachAt(start uint64, cb func(uint64, interface{}) error) error {
	return v.root.forEachAt(v.bitWidth, v.shift, start, 0, cb)
}
