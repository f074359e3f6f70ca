package pvec

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// ParallelDiff behaves like Diff but fans the comparison out over the given
// number of worker goroutines. Change ordering is not deterministic.
func ParallelDiff(ctx context.Context, prev, cur *Vector, workers int64) ([]*Change, error) {
	if prev.bitWidth != cur.bitWidth {
		return nil, xerrors.Errorf("diffing vectors with differing bitWidths not supported (prev=%d, cur=%d)", prev.bitWidth, cur.bitWidth)
	}

	// edge case of diffing an empty vector against non-empty
	if prev.count == 0 && cur.count != 0 {
		return addAll(cur.root, cur.bitWidth, cur.shift, 0)
	}
	if prev.count != 0 && cur.count == 0 {
		return removeAll(prev.root, prev.bitWidth, prev.shift, 0)
	}

	out := make(chan *Change)
	differ, ctx := newDiffScheduler(ctx, workers, &task{
		bitWidth:  prev.bitWidth,
		prev:      prev.root,
		cur:       cur.root,
		prevShift: prev.shift,
		curShift:  cur.shift,
		offset:    0,
	})
	differ.startScheduler(ctx)
	differ.startWorkers(ctx, out)

	var changes []*Change
	done := make(chan struct{})
	go func() {
		for change := range out {
			changes = append(changes, change)
		}
		close(done)
	}()

	err := differ.grp.Wait()
	close(out)
	<-done

	return changes, err
}

func parallelAddAll(n *node, bitWidth, shift uint, offset uint64, out chan *Change) error {
	return n.forEachAt(bitWidth, shift, 0, offset, func(index uint64, val interface{}) error {
		out <- &Change{
			Type:   Add,
			Index:  index,
			Before: nil,
			After:  val,
		}
		return nil
	})
}

func parallelRemoveAll(n *node, bitWidth, shift uint, offset uint64, out chan *Change) error {
	return n.forEachAt(bitWidth, shift, 0, offset, func(index uint64, val interface{}) error {
		out <- &Change{
			Type:   Remove,
			Index:  index,
			Before: val,
			After:  nil,
		}
		return nil
	})
}

func parallelDiffLeaves(prev, cur *node, offset uint64, out chan *Change) error {
	if len(prev.slots) != len(cur.slots) {
		return fmt.Errorf("leaves have different widths (prev=%d, cur=%d)", len(prev.slots), len(cur.slots))
	}

	for i, prevVal := range prev.slots {
		index := offset + uint64(i)

		curVal := cur.slots[i]
		if prevVal == nil && curVal == nil {
			continue
		}

		if prevVal == nil && curVal != nil {
			out <- &Change{
				Type:   Add,
				Index:  index,
				Before: nil,
				After:  curVal,
			}
			continue
		}

		if prevVal != nil && curVal == nil {
			out <- &Change{
				Type:   Remove,
				Index:  index,
				Before: prevVal,
				After:  nil,
			}
			continue
		}

		if prevVal != curVal {
			out <- &Change{
				Type:   Modify,
				Index:  index,
				Before: prevVal,
				After:  curVal,
			}
		}
	}
	return nil
}

type task struct {
	bitWidth            uint
	prev, cur           *node
	prevShift, curShift uint
	offset              uint64
}

func newDiffScheduler(ctx context.Context, numWorkers int64, rootTasks ...*task) (*diffScheduler, context.Context) {
	grp, ctx := errgroup.WithContext(ctx)
	s := &diffScheduler{
		numWorkers: numWorkers,
		stack:      rootTasks,
		in:         make(chan *task, numWorkers),
		out:        make(chan *task, numWorkers),
		grp:        grp,
	}
	s.taskWg.Add(len(rootTasks))
	return s, ctx
}

type diffScheduler struct {
	// number of worker routine to spawn
	numWorkers int64
	// buffer holds tasks until they are processed
	stack []*task
	// inbound and outbound tasks
	in, out chan *task
	// tracks number of inflight tasks
	taskWg sync.WaitGroup
	// launches workers and collects errors if any occur
	grp *errgroup.Group
}

func (s *diffScheduler) enqueueTask(task *task) {
	s.taskWg.Add(1)
	s.in <- task
}

func (s *diffScheduler) startScheduler(ctx context.Context) {
	s.grp.Go(func() error {
		defer func() {
			close(s.out)
			// Because the workers may have exited early (due to the context being canceled).
			for range s.out {
				s.taskWg.Done()
			}
			// Because the workers may have enqueued additional tasks.
			for range s.in {
				s.taskWg.Done()
			}
			// now, the waitgroup should be at 0, and the goroutine that was _waiting_ on it should have exited.
		}()
		go func() {
			s.taskWg.Wait()
			close(s.in)
		}()
		for {
			if n := len(s.stack) - 1; n >= 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case newJob, ok := <-s.in:
					if !ok {
						return nil
					}
					s.stack = append(s.stack, newJob)
				case s.out <- s.stack[n]:
					s.stack[n] = nil
					s.stack = s.stack[:n]
				}
			} else {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case newJob, ok := <-s.in:
					if !ok {
						return nil
					}
					s.stack = append(s.stack, newJob)
				}
			}
		}
	})
}

func (s *diffScheduler) startWorkers(ctx context.Context, out chan *Change) {
	for i := int64(0); i < s.numWorkers; i++ {
		s.grp.Go(func() error {
			for task := range s.out {
				if err := s.work(ctx, task, out); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

func (s *diffScheduler) work(ctx context.Context, todo *task, results chan *Change) error {
	defer s.taskWg.Done()

	bitWidth := todo.bitWidth
	prev := todo.prev
	cur := todo.cur
	prevShift := todo.prevShift
	curShift := todo.curShift
	offset := todo.offset

	if prev == nil && cur == nil {
		return nil
	}

	if prev == nil {
		return parallelAddAll(cur, bitWidth, curShift, offset, results)
	}

	if cur == nil {
		return parallelRemoveAll(prev, bitWidth, prevShift, offset, results)
	}

	if prev == cur && prevShift == curShift {
		return nil
	}

	if prevShift == 0 && curShift == 0 {
		return parallelDiffLeaves(prev, cur, offset, results)
	}

	if curShift > prevShift {
		subCount := uint64(1) << curShift
		for i, c := range cur.slots {
			if c == nil {
				continue
			}
			subn := c.(*node)
			offs := offset + uint64(i)*subCount

			if i == 0 {
				s.enqueueTask(&task{
					bitWidth:  bitWidth,
					prev:      prev,
					cur:       subn,
					prevShift: prevShift,
					curShift:  curShift - bitWidth,
					offset:    offs,
				})
			} else {
				if err := parallelAddAll(subn, bitWidth, curShift-bitWidth, offs, results); err != nil {
					return err
				}
			}
		}

		return nil
	}

	if prevShift > curShift {
		subCount := uint64(1) << prevShift
		for i, c := range prev.slots {
			if c == nil {
				continue
			}
			subn := c.(*node)
			offs := offset + uint64(i)*subCount

			if i == 0 {
				s.enqueueTask(&task{
					bitWidth:  bitWidth,
					prev:      subn,
					cur:       cur,
					prevShift: prevShift - bitWidth,
					curShift:  curShift,
					offset:    offs,
				})
			} else {
				if err := parallelRemoveAll(subn, bitWidth, prevShift-bitWidth, offs, results); err != nil {
					return err
				}
			}
		}

		return nil
	}

	// sanity check
	if prevShift != curShift {
		return fmt.Errorf("comparing non-leaf nodes of unequal shifts (%d, %d)", prevShift, curShift)
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
		if prevSub == nil && curSub == nil {
			continue
		}

		offs := offset + uint64(i)*subCount

		s.enqueueTask(&task{
			bitWidth:  bitWidth,
			prev:      prevSub,
			cur:       curSub,
			prevShift: prevShift - bitWidth,
			curShift:  curShift - bitWidth,
			offset:    offs,
		})
	}

	return nil
}
