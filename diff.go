package pvec

import (
	"encoding/json"
	"fmt"

	"golang.org/x/xerrors"
)

// ChangeType denotes type of change in Change
type ChangeType int

// These constants define the changes that can be applied to a vector.
const (
	Add ChangeType = iota
	Remove
	Modify
)

// Change represents a change to a vector and contains the old and new
// element for the affected index.
type Change struct {
	Type   ChangeType
	Index  uint64
	Before interface{}
	After  interface{}
}

func (ch Change) String() string {
	b, _ := json.Marshal(ch)
	return string(b)
}

// Diff returns a set of changes that transform version 'prev' into version
// 'cur'. Subtrees the two versions share are skipped by node identity, so
// the cost is proportional to the structure that differs, not to the vector
// size. Elements are compared with ==; callers storing uncomparable values
// must compare versions some other way.
func Diff(prev, cur *Vector) ([]*Change, error) {
	if prev.bitWidth != cur.bitWidth {
		return nil, xerrors.Errorf("diffing vectors with differing bitWidths not supported (prev=%d, cur=%d)", prev.bitWidth, cur.bitWidth)
	}
	return diffNode(prev.root, cur.root, prev.shift, cur.shift, prev.bitWidth, 0)
}

func diffNode(prev, cur *node, prevShift, curShift, bitWidth uint, offset uint64) ([]*Change, error) {
	if prev == nil && cur == nil {
		return nil, nil
	}

	if prev == nil {
		return addAll(cur, bitWidth, curShift, offset)
	}

	if cur == nil {
		return removeAll(prev, bitWidth, prevShift, offset)
	}

	// Shared structure needs no comparison at all.
	if prev == cur && prevShift == curShift {
		return nil, nil
	}

	if prevShift == 0 && curShift == 0 {
		return diffLeaves(prev, cur, offset)
	}

	changes := make([]*Change, 0)

	if curShift > prevShift {
		subCount := uint64(1) << curShift
		for i, s := range cur.slots {
			if s == nil {
				continue
			}
			sub := s.(*node)
			offs := offset + uint64(i)*subCount

			if i == 0 {
				cs, err := diffNode(prev, sub, prevShift, curShift-bitWidth, bitWidth, offs)
				if err != nil {
					return nil, err
				}
				changes = append(changes, cs...)
			} else {
				cs, err := addAll(sub, bitWidth, curShift-bitWidth, offs)
				if err != nil {
					return nil, err
				}
				changes = append(changes, cs...)
			}
		}

		return changes, nil
	}

	if prevShift > curShift {
		subCount := uint64(1) << prevShift
		for i, s := range prev.slots {
			if s == nil {
				continue
			}
			sub := s.(*node)
			offs := offset + uint64(i)*subCount

			if i == 0 {
				cs, err := diffNode(sub, cur, prevShift-bitWidth, curShift, bitWidth, offs)
				if err != nil {
					return nil, err
				}
				changes = append(changes, cs...)
			} else {
				cs, err := removeAll(sub, bitWidth, prevShift-bitWidth, offs)
				if err != nil {
					return nil, err
				}
				changes = append(changes, cs...)
			}
		}

		return changes, nil
	}

	// sanity check
	if prevShift != curShift {
		return nil, fmt.Errorf("comparing non-leaf nodes of unequal shifts (%d, %d)", prevShift, curShift)
	}

	subCount := uint64(1) << prevShift
	for i := range prev.slots {
		var prevSub, curSub *node
		if prev.slots[i] != nil {
			prevSub = prev.child(uint64(i))
		}
		if cur.slots[i] != nil {
			curSub = cur.child(uint64(i))
		}

		offs := offset + uint64(i)*subCount

		cs, err := diffNode(prevSub, curSub, prevShift-bitWidth, curShift-bitWidth, bitWidth, offs)
		if err != nil {
			return nil, err
		}
		changes = append(changes, cs...)
	}

	return changes, nil
}

func addAll(n *node, bitWidth, shift uint, offset uint64) ([]*Change, error) {
	changes := make([]*Change, 0)
	err := n.forEachAt(bitWidth, shift, 0, offset, func(index uint64, val interface{}) error {
		changes = append(changes, &Change{
			Type:   Add,
			Index:  index,
			Before: nil,
			After:  val,
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	return changes, nil
}

func removeAll(n *node, bitWidth, shift uint, offset uint64) ([]*Change, error) {
	changes := make([]*Change, 0)

	err := n.forEachAt(bitWidth, shift, 0, offset, func(index uint64, val interface{}) error {
		changes = append(changes, &Change{
			Type:   Remove,
			Index:  index,
			Before: val,
			After:  nil,
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	return changes, nil
}

func diffLeaves(prev, cur *node, offset uint64) ([]*Change, error) {
	if len(prev.slots) != len(cur.slots) {
		return nil, fmt.Errorf("unexpected length of leaves %d and %d", len(prev.slots), len(cur.slots))
	}

	changes := make([]*Change, 0)
	for i, prevVal := range prev.slots {
		index := offset + uint64(i)

		curVal := cur.slots[i]
		if prevVal == nil && curVal == nil {
			continue
		}

		if prevVal == nil && curVal != nil {
			changes = append(changes, &Change{
				Type:   Add,
				Index:  index,
				Before: nil,
				After:  curVal,
			})

			continue
		}

		if prevVal != nil && curVal == nil {
			changes = append(changes, &Change{
				Type:   Remove,
				Index:  index,
				Before: prevVal,
				After:  nil,
			})

			continue
		}

		if prevVal != curVal {
			changes = append(changes, &Change{
				Type:   Modify,
				Index:  index,
				Before: prevVal,
				After:  curVal,
			})
		}
	}

	return changes, nil
}
