package pvec

import (
	"context"
	"fmt"

	cid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-pvec-ipld/internal"
)

// Flush writes every node reachable from v to the store, one dag-cbor block
// per node, and returns the CID of the root block. Elements must implement
// cbg.CBORMarshaler or be encodable by go-ipld-cbor's default encoder;
// elements produced by LoadVector (*cbg.Deferred) round-trip unchanged.
// Serialization is deterministic, so identical subtrees produce identical
// blocks and the content-addressed store holds one copy; versions that
// share structure share storage.
func (v *Vector) Flush(ctx context.Context, store cbor.IpldStore) (cid.Cid, error) {
	nd, err := v.flushNode(ctx, store, v.root, v.shift)
	if err != nil {
		return cid.Undef, err
	}

	r := internal.Root{
		Shift: uint64(v.shift),
		Count: v.count,
		Node:  *nd,
	}
	c, err := store.Put(ctx, &r)
	if err != nil {
		return cid.Undef, xerrors.Errorf("writing root: %w", err)
	}
	return c, nil
}

func (v *Vector) flushNode(ctx context.Context, store cbor.IpldStore, n *node, shift uint) (*internal.Node, error) {
	nd := &internal.Node{Bmap: makeBmap(v.branching())}

	if shift == 0 {
		for i, val := range n.slots {
			if val == nil {
				continue
			}
			raw, err := elementBytes(val)
			if err != nil {
				return nil, xerrors.Errorf("encoding element %d: %w", i, err)
			}
			nd.Values = append(nd.Values, &cbg.Deferred{Raw: raw})
			setBit(nd.Bmap, uint64(i))
		}
		return nd, nil
	}

	for i, s := range n.slots {
		if s == nil {
			continue
		}
		sub, err := v.flushNode(ctx, store, s.(*node), shift-v.bitWidth)
		if err != nil {
			return nil, err
		}
		c, err := store.Put(ctx, sub)
		if err != nil {
			return nil, xerrors.Errorf("writing node: %w", err)
		}
		nd.Links = append(nd.Links, c)
		setBit(nd.Bmap, uint64(i))
	}
	return nd, nil
}

func elementBytes(val interface{}) ([]byte, error) {
	if d, ok := val.(*cbg.Deferred); ok {
		return d.Raw, nil
	}
	if m, ok := val.(cbg.CBORMarshaler); ok {
		return cborToBytes(m)
	}
	return cbor.DumpObject(val)
}

// LoadVector reads a vector previously written by Flush. The bit width is
// not recorded in the root block; loading with a different UseTreeBitWidth
// than the vector was written with fails validation. Elements surface as
// *cbg.Deferred holding their raw encoding.
func LoadVector(ctx context.Context, store cbor.IpldStore, root cid.Cid, opts ...Option) (*Vector, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var r internal.Root
	if err := store.Get(ctx, root, &r); err != nil {
		return nil, xerrors.Errorf("loading root: %w", err)
	}

	bitWidth := cfg.bitWidth
	if r.Shift >= 64 || uint(r.Shift)%bitWidth != 0 {
		return nil, errInvalidShift
	}
	shift := uint(r.Shift)
	if r.Count > maxForShift(bitWidth, shift) {
		return nil, errInvalidCount
	}
	// A level whose whole population fits in its first child should not
	// exist.
	if shift > 0 && r.Count <= uint64(1)<<shift {
		return nil, errNotCompact
	}

	n, count, err := loadNode(ctx, store, &r.Node, bitWidth, shift, r.Count == 0)
	if err != nil {
		return nil, err
	}
	if count != r.Count {
		return nil, errInvalidCount
	}

	return &Vector{
		bitWidth: bitWidth,
		count:    r.Count,
		shift:    shift,
		root:     n,
	}, nil
}

func loadNode(ctx context.Context, store cbor.IpldStore, nd *internal.Node, bitWidth, shift uint, allowEmpty bool) (*node, uint64, error) {
	if len(nd.Links) > 0 && len(nd.Values) > 0 {
		return nil, 0, errLinksAndValues
	}

	width := uint64(1) << bitWidth
	if err := checkBmap(nd.Bmap, width); err != nil {
		return nil, 0, err
	}
	// A dense vector populates slots left to right without holes; a gap
	// would put an index below the count on a nil slot.
	gap := false
	for x := uint64(0); x < width; x++ {
		if !getBit(nd.Bmap, x) {
			gap = true
		} else if gap {
			return nil, 0, errNotDense
		}
	}

	n := newNode(width)

	if len(nd.Values) > 0 {
		if shift != 0 {
			return nil, 0, errLeafUnexpected
		}
		i := 0
		for x := uint64(0); x < width; x++ {
			if !getBit(nd.Bmap, x) {
				continue
			}
			if i >= len(nd.Values) {
				return nil, 0, fmt.Errorf("expected at least %d values, found %d", i+1, len(nd.Values))
			}
			n.slots[x] = nd.Values[i]
			i++
		}
		if i != len(nd.Values) {
			return nil, 0, fmt.Errorf("expected %d values, got %d", i, len(nd.Values))
		}
		return n, uint64(i), nil
	}

	if len(nd.Links) > 0 {
		if shift == 0 {
			return nil, 0, errLeafExpected
		}
		full := uint64(1) << shift
		i := 0
		var count uint64
		for x := uint64(0); x < width; x++ {
			if !getBit(nd.Bmap, x) {
				continue
			}
			if i >= len(nd.Links) {
				return nil, 0, fmt.Errorf("expected at least %d links, found %d", i+1, len(nd.Links))
			}
			// Every child but the rightmost spans its whole index range.
			if i > 0 && count != uint64(i)*full {
				return nil, 0, errNotDense
			}
			c := nd.Links[i]
			if !c.Defined() {
				return nil, 0, errUndefinedCID
			}
			if prefix := c.Prefix(); prefix.Codec != cid.DagCBOR {
				return nil, 0, fmt.Errorf("internal vector nodes must be cbor, found %d", prefix.Codec)
			}

			var sub internal.Node
			if err := store.Get(ctx, c, &sub); err != nil {
				return nil, 0, xerrors.Errorf("loading node %s: %w", c, err)
			}
			child, subCount, err := loadNode(ctx, store, &sub, bitWidth, shift-bitWidth, false)
			if err != nil {
				return nil, 0, err
			}
			n.slots[x] = child
			count += subCount
			i++
		}
		if i != len(nd.Links) {
			return nil, 0, fmt.Errorf("expected %d links, got %d", i, len(nd.Links))
		}
		return n, count, nil
	}

	if !allowEmpty {
		return nil, 0, errEmptyNode
	}
	return n, 0, nil
}
