package pvec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteDot(t *testing.T) {
	v, err := New(UseTreeBitWidth(2))
	require.NoError(t, err)
	v = pushSeq(t, v, 0, 6)

	var buf bytes.Buffer
	require.NoError(t, WriteDot(&buf, v))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "digraph pvec {\n"))
	require.True(t, strings.HasSuffix(out, "}\n"))
	require.Contains(t, out, "head0 [shape=box,label=\"head 0: count=6 shift=2\"]")
	require.Contains(t, out, "head0 -> n0;")

	// root plus two leaves
	require.Equal(t, 3, strings.Count(out, "[label="))
	require.Contains(t, out, "n0:f0 -> n1;")
	require.Contains(t, out, "n0:f1 -> n2;")
}

func TestWriteDotSharedStructure(t *testing.T) {
	v, err := New(UseTreeBitWidth(2))
	require.NoError(t, err)
	v = pushSeq(t, v, 0, 6)
	w, err := v.Update(1, -1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDot(&buf, v, w))
	out := buf.String()

	// v contributes a root and two leaves; w clones the root and the first
	// leaf, the second leaf is shared and must not be re-emitted
	require.Equal(t, 5, strings.Count(out, "[label="))
	require.Equal(t, 2, strings.Count(out, "[shape=box,"))
	require.Equal(t, 6, strings.Count(out, "->"))
	require.Equal(t, 2, strings.Count(out, "-> n2;"))
}

func TestWriteDotEscapesLabels(t *testing.T) {
	v, err := New(UseTreeBitWidth(2))
	require.NoError(t, err)
	v = v.Push(`a|b`).Push(`c"d`)

	var buf bytes.Buffer
	require.NoError(t, WriteDot(&buf, v))
	out := buf.String()
	require.Contains(t, out, `a\|b`)
	require.Contains(t, out, `c\"d`)
}

func TestWriteDotEmpty(t *testing.T) {
	v, err := New(UseTreeBitWidth(2))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDot(&buf, v))
	require.Contains(t, buf.String(), "count=0 shift=0")
}
