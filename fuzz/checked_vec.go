package fuzzer

import (
	"context"
	"errors"
	"fmt"

	cbor "github.com/ipfs/go-ipld-cbor"
	cbg "github.com/whyrusleeping/cbor-gen"

	pvec "github.com/filecoin-project/go-pvec-ipld"
)

// checkedVector drives a vector and a flat slice through the same operations
// and panics on any divergence.
type checkedVector struct {
	vec      *pvec.Vector
	bitWidth uint
	step     uint64
	bs       cbor.IpldStore

	model []cbg.CborInt
}

func newCheckedVector(bitWidth uint) (*checkedVector, error) {
	bs := cbor.NewCborStore(newMockBlocks())
	vec, err := pvec.New(pvec.UseTreeBitWidth(bitWidth))
	if err != nil {
		return nil, err
	}
	return &checkedVector{
		vec:      vec,
		bitWidth: bitWidth,
		bs:       bs,
	}, nil
}

func (c *checkedVector) push(value cbg.CborInt) {
	c.trace("push %d", value)
	c.model = append(c.model, value)
	c.vec = c.vec.Push(&value)
	c.checkEq(cbg.CborInt(len(c.model)), cbg.CborInt(c.vec.Count()))
}

func (c *checkedVector) pop() {
	c.trace("pop")
	next, err := c.vec.Pop()
	if len(c.model) == 0 {
		if !errors.Is(err, pvec.ErrEmptyVector) {
			c.fail("expected pop of empty vector to fail, got %v", err)
		}
		return
	}
	c.checkErr(err)
	c.model = c.model[:len(c.model)-1]
	c.vec = next
	c.checkEq(cbg.CborInt(len(c.model)), cbg.CborInt(c.vec.Count()))
}

func (c *checkedVector) nth(key uint64) {
	i := c.index(key)
	c.trace("nth %d", i)
	val, err := c.vec.Nth(i)
	if i >= uint64(len(c.model)) {
		if !errors.Is(err, pvec.ErrIndexOutOfRange) {
			c.fail("expected nth(%d) of %d to fail, got %v", i, len(c.model), err)
		}
		return
	}
	c.checkErr(err)
	c.checkEq(c.model[i], c.value(val))
}

func (c *checkedVector) update(key uint64, value cbg.CborInt) {
	i := c.index(key)
	c.trace("update %d to %d", i, value)
	next, err := c.vec.Update(i, &value)
	if i >= uint64(len(c.model)) {
		if !errors.Is(err, pvec.ErrIndexOutOfRange) {
			c.fail("expected update(%d) of %d to fail, got %v", i, len(c.model), err)
		}
		return
	}
	c.checkErr(err)
	c.model[i] = value
	c.vec = next
}

func (c *checkedVector) peek() {
	c.trace("peek")
	val, err := c.vec.Peek()
	if len(c.model) == 0 {
		if !errors.Is(err, pvec.ErrEmptyVector) {
			c.fail("expected peek of empty vector to fail, got %v", err)
		}
		return
	}
	c.checkErr(err)
	c.checkEq(c.model[len(c.model)-1], c.value(val))
}

func (c *checkedVector) rightSlice(key uint64) {
	size := c.index(key)
	c.trace("rightSlice %d", size)
	next, err := c.vec.RightSlice(size)
	if size > uint64(len(c.model)) {
		if !errors.Is(err, pvec.ErrIndexOutOfRange) {
			c.fail("expected rightSlice(%d) of %d to fail, got %v", size, len(c.model), err)
		}
		return
	}
	c.checkErr(err)
	c.model = c.model[:size]
	c.vec = next
	c.checkEq(cbg.CborInt(len(c.model)), cbg.CborInt(c.vec.Count()))
}

func (c *checkedVector) flush() {
	c.trace("flush")
	c1, err := c.vec.Flush(context.Background(), c.bs)
	c.checkErr(err)
	c2, err := c.vec.Flush(context.Background(), c.bs)
	c.checkErr(err)
	if c1 != c2 {
		c.fail("cids don't match %s != %s", c1, c2)
	}
	// Don't check the vector itself here, we'll check that at the end.
}

func (c *checkedVector) reload() {
	c.trace("reload")
	cid, err := c.vec.Flush(context.Background(), c.bs)
	c.checkErr(err)
	c.vec, err = pvec.LoadVector(context.Background(), c.bs, cid, pvec.UseTreeBitWidth(c.bitWidth))
	c.checkErr(err)
	// Don't check the vector itself here, we'll check that at the end.
}

// index maps a raw fuzzer key onto the interesting range: every current
// index, the pop/grow boundary at count, and one past it.
func (c *checkedVector) index(key uint64) uint64 {
	return key % (uint64(len(c.model)) + 2)
}

// value normalizes an element, which is a *cbg.CborInt when pushed in this
// session and a *cbg.Deferred after a reload.
func (c *checkedVector) value(val interface{}) cbg.CborInt {
	switch e := val.(type) {
	case *cbg.CborInt:
		return *e
	case *cbg.Deferred:
		var out cbg.CborInt
		c.checkErr(cbor.DecodeInto(e.Raw, &out))
		return out
	default:
		c.fail("unexpected element type %T", val)
		panic("unreachable")
	}
}

func (c *checkedVector) trace(msg string, args ...interface{}) {
	c.step++
	if Debug {
		fmt.Printf("step %d: "+msg+"\n", append([]interface{}{c.step}, args...)...)
	}
}

func (c *checkedVector) check() {
	// Check in-memory state
	c.checkByIter(c.vec)
	c.checkByNth(c.vec)

	root, err := c.vec.Flush(context.Background(), c.bs)
	c.checkErr(err)

	{
		// Check by iterating
		vec, err := pvec.LoadVector(context.Background(), c.bs, root, pvec.UseTreeBitWidth(c.bitWidth))
		c.checkErr(err)
		c.checkByIter(vec)
	}

	{
		// Check by indexed reads
		vec, err := pvec.LoadVector(context.Background(), c.bs, root, pvec.UseTreeBitWidth(c.bitWidth))
		c.checkErr(err)
		c.checkByNth(vec)
	}

	{
		// Check by reproducing.
		vec, err := pvec.New(pvec.UseTreeBitWidth(c.bitWidth))
		c.checkErr(err)
		for i := range c.model {
			vec = vec.Push(&c.model[i])
		}
		newCid, err := vec.Flush(context.Background(), c.bs)
		c.checkErr(err)
		if newCid != root {
			c.fail("expected to reconstruct identical vector")
		}
	}
}

func (c *checkedVector) checkErr(e error) {
	if e != nil {
		c.fail(e.Error())
	}
}

func (c *checkedVector) checkEq(a, b cbg.CborInt) {
	if a != b {
		c.fail("expected %d == %d", a, b)
	}
}

func (c *checkedVector) checkByNth(vec *pvec.Vector) {
	c.checkEq(cbg.CborInt(len(c.model)), cbg.CborInt(vec.Count()))
	for i, expected := range c.model {
		val, err := vec.Nth(uint64(i))
		c.checkErr(err)
		c.checkEq(expected, c.value(val))
	}
	if _, err := vec.Nth(uint64(len(c.model))); !errors.Is(err, pvec.ErrIndexOutOfRange) {
		c.fail("expected read past the end to fail, got %v", err)
	}
}

func (c *checkedVector) checkByIter(vec *pvec.Vector) {
	next := uint64(0)
	c.checkErr(vec.ForEach(func(i uint64, val interface{}) error {
		if i != next {
			c.fail("expected index %d, got %d", next, i)
		}
		if i >= uint64(len(c.model)) {
			c.fail("unexpected index %d", i)
		}
		c.checkEq(c.model[i], c.value(val))
		next++
		return nil
	}))
	if next != uint64(len(c.model)) {
		c.fail("expected %d elements, iterated %d", len(c.model), next)
	}
}

func (c *checkedVector) fail(msg string, args ...interface{}) {
	panic(fmt.Sprintf("step %d: "+msg, append([]interface{}{c.step}, args...)...))
}
