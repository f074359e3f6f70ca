package pvec

import (
	"fmt"
	"io"
	"strings"
)

// WriteDot renders the tries behind one or more heads as a single Graphviz
// digraph, which is handy for seeing how versions share structure. The walk
// is read-only; a node reachable from several heads (or through several
// paths) is emitted once, deduplicated by identity, with one edge per
// reference.
func WriteDot(w io.Writer, vs ...*Vector) error {
	e := &dotEmitter{w: w, ids: make(map[*node]int)}
	e.printf("digraph pvec {\n")
	e.printf("\tnode [shape=record];\n")
	for i, v := range vs {
		root := e.emit(v.root, v.bitWidth, v.shift)
		e.printf("\thead%d [shape=box,label=\"head %d: count=%d shift=%d\"];\n", i, i, v.count, v.shift)
		e.printf("\thead%d -> n%d;\n", i, root)
	}
	e.printf("}\n")
	return e.err
}

type dotEmitter struct {
	w    io.Writer
	ids  map[*node]int
	next int
	err  error
}

func (e *dotEmitter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

// emit writes n (and, for interior nodes, its subtree) and returns its
// identifier. Already-rendered nodes are not re-emitted.
func (e *dotEmitter) emit(n *node, bitWidth, shift uint) int {
	if id, ok := e.ids[n]; ok {
		return id
	}
	id := e.next
	e.next++
	e.ids[n] = id

	cells := make([]string, len(n.slots))
	for i, s := range n.slots {
		if s == nil {
			cells[i] = fmt.Sprintf("<f%d>", i)
		} else if shift == 0 {
			cells[i] = fmt.Sprintf("<f%d> %s", i, dotEscape(fmt.Sprintf("%v", s)))
		} else {
			cells[i] = fmt.Sprintf("<f%d> *", i)
		}
	}
	e.printf("\tn%d [label=\"%s\"];\n", id, strings.Join(cells, "|"))

	if shift == 0 {
		return id
	}
	for i, s := range n.slots {
		if s == nil {
			continue
		}
		child := e.emit(s.(*node), bitWidth, shift-bitWidth)
		e.printf("\tn%d:f%d -> n%d;\n", id, i, child)
	}
	return id
}

var dotEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`<`, `\<`,
	`>`, `\>`,
)

func dotEscape(s string) string {
	return dotEscaper.Replace(s)
}
