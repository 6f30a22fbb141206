package symtree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the codec:
// - built, root-only and zero-node indexes survive a round trip
// - decoded indexes answer searches like the original
// - a foreign format tag is reported as a mismatch
// - every truncation of a valid payload is rejected as corrupt
// - structural damage (bad parents, order, cycles, trailing bytes) is rejected
// - same-name nodes must be ordered by their ancestor chains
// - TryDecode folds the outcome into one value

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		x    *Index
	}{
		{"sample", mustBuild(t, sampleRoot())},
		{"case variants", mustBuild(t, caseRoot())},
		{"root only", mustBuild(t, scope(""))},
		{"no nodes", NewEmpty("empty")},
		{"deep", mustBuild(t, largeRoot(3, 4))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			decoded, err := Decode(Encode(tt.x))
			require.NoError(t, err)
			assert.True(t, IsEquivalent(tt.x, decoded))
		})
	}
}

func TestCodec_DecodedIndexSearches(t *testing.T) {
	t.Parallel()

	x := mustBuild(t, caseRoot())
	decoded, err := Decode(Encode(x))
	require.NoError(t, err)

	assert.Equal(t, x.FindNodes("foo", true), decoded.FindNodes("foo", true))
	assert.Equal(t, Version("v1"), decoded.Version())
}

func TestDecode_FormatMismatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeString(&buf, "declindex.symtree/0")
	writeString(&buf, "v1")
	writeUvarint(&buf, 0)

	_, err := Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrFormatMismatch)
	assert.NotErrorIs(t, err, ErrCorrupt)
}

func TestDecode_Truncated(t *testing.T) {
	t.Parallel()

	data := Encode(mustBuild(t, sampleRoot()))
	for n := 0; n < len(data); n++ {
		_, err := Decode(data[:n])
		require.ErrorIs(t, err, ErrCorrupt, "prefix of %d bytes", n)
	}
}

func TestDecode_StructuralDamage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		nodes []Node
	}{
		{"first node not root", []Node{{"A", 0}, {"", RootParentIndex}}},
		{"second root", []Node{{"", RootParentIndex}, {"A", RootParentIndex}}},
		{"parent out of range", []Node{{"", RootParentIndex}, {"A", 7}}},
		{"negative parent", []Node{{"", RootParentIndex}, {"A", -4}}},
		{"self parent", []Node{{"", RootParentIndex}, {"A", 1}}},
		{"out of order", []Node{{"", RootParentIndex}, {"B", 0}, {"A", 0}}},
		{"cycle", []Node{{"", RootParentIndex}, {"A", 2}, {"B", 1}}},
		{"tie out of order", []Node{{"", RootParentIndex}, {"A", 4}, {"A", 3}, {"X", 0}, {"Y", 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(encodeNodes("v1", tt.nodes))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestDecode_TiesOrderedByParents(t *testing.T) {
	t.Parallel()

	nodes := []Node{{"", RootParentIndex}, {"A", 3}, {"A", 4}, {"X", 0}, {"Y", 0}}
	x, err := Decode(encodeNodes("v1", nodes))
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "A"}, x.Path(1))
	assert.Equal(t, []string{"Y", "A"}, x.Path(2))
}

func TestDecode_TrailingBytes(t *testing.T) {
	t.Parallel()

	data := append(Encode(mustBuild(t, sampleRoot())), 0x00)
	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecode_ImplausibleCount(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeString(&buf, FormatTag)
	writeString(&buf, "v1")
	writeUvarint(&buf, 1<<40)

	_, err := Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecode_ParentBeyondIntRange(t *testing.T) {
	t.Parallel()

	for _, parent := range []int64{1 << 32, 1<<32 + 1, -(1 << 32)} {
		var buf bytes.Buffer
		writeString(&buf, FormatTag)
		writeString(&buf, "v1")
		writeUvarint(&buf, 2)
		writeString(&buf, "")
		writeVarint(&buf, RootParentIndex)
		writeString(&buf, "A")
		writeVarint(&buf, parent)

		_, err := Decode(buf.Bytes())
		assert.ErrorIs(t, err, ErrCorrupt, "parent %d", parent)
	}
}

func TestTryDecode(t *testing.T) {
	t.Parallel()

	ok := TryDecode(Encode(mustBuild(t, sampleRoot())))
	assert.True(t, ok.OK())
	assert.NoError(t, ok.Reason)

	bad := TryDecode([]byte{0xff})
	assert.False(t, bad.OK())
	assert.Nil(t, bad.Index)
	assert.ErrorIs(t, bad.Reason, ErrCorrupt)
}

// encodeNodes writes nodes verbatim, bypassing the builder.
func encodeNodes(version string, nodes []Node) []byte {
	var buf bytes.Buffer
	writeString(&buf, FormatTag)
	writeString(&buf, version)
	writeUvarint(&buf, uint64(len(nodes)))
	for _, n := range nodes {
		writeString(&buf, n.Name)
		writeVarint(&buf, int64(n.ParentIndex))
	}
	return buf.Bytes()
}
