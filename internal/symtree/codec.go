package symtree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FormatTag identifies the current encoding. Payloads written under any
// other tag are treated as absent, never as errors to surface.
const FormatTag = "declindex.symtree/1"

var (
	// ErrFormatMismatch means the payload was written by a different
	// revision of the encoding.
	ErrFormatMismatch = errors.New("symtree: format tag mismatch")

	// ErrCorrupt means the payload is truncated or malformed.
	ErrCorrupt = errors.New("symtree: corrupt payload")
)

// minNodeBytes is the smallest encoding of one node: an empty name and a
// one-byte parent index.
const minNodeBytes = 2

// Encode serializes x into memory. Callers write the returned bytes as a
// single unit so that an interrupted write is never observed as valid.
func Encode(x *Index) []byte {
	var buf bytes.Buffer
	writeString(&buf, FormatTag)
	writeString(&buf, string(x.version))
	writeUvarint(&buf, uint64(len(x.nodes)))
	for _, n := range x.nodes {
		writeString(&buf, n.Name)
		writeVarint(&buf, int64(n.ParentIndex))
	}
	return buf.Bytes()
}

// Decode reads an index written by Encode. It returns ErrFormatMismatch or
// ErrCorrupt (possibly wrapped) instead of a partially populated index.
func Decode(data []byte) (*Index, error) {
	r := bytes.NewReader(data)

	tag, err := readString(r)
	if err != nil {
		return nil, err
	}
	if tag != FormatTag {
		return nil, fmt.Errorf("%w: got %q", ErrFormatMismatch, tag)
	}

	version, err := readString(r)
	if err != nil {
		return nil, err
	}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, corrupt("node count", err)
	}
	if count > uint64(r.Len()/minNodeBytes) {
		return nil, fmt.Errorf("%w: %d nodes cannot fit in %d bytes", ErrCorrupt, count, r.Len())
	}

	nodes := make([]Node, count)
	for i := range nodes {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		parent, err := binary.ReadVarint(r)
		if err != nil {
			return nil, corrupt("parent index", err)
		}
		if parent < RootParentIndex || parent >= int64(count) {
			return nil, fmt.Errorf("%w: node %d has parent index %d", ErrCorrupt, i, parent)
		}
		nodes[i] = Node{Name: intern(name), ParentIndex: int(parent)}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	if err := validateNodes(nodes); err != nil {
		return nil, err
	}
	return newIndex(Version(version), nodes), nil
}

// DecodeResult is the outcome of TryDecode: either an index or the reason
// there is none.
type DecodeResult struct {
	Index  *Index
	Reason error
}

// OK reports whether an index was decoded.
func (r DecodeResult) OK() bool {
	return r.Index != nil
}

// TryDecode is Decode folded into a single result value.
func TryDecode(data []byte) DecodeResult {
	x, err := Decode(data)
	return DecodeResult{Index: x, Reason: err}
}

// validateNodes checks the structural invariants of a decoded array.
func validateNodes(nodes []Node) error {
	if len(nodes) == 0 {
		return nil
	}
	if !nodes[0].IsRoot() {
		return fmt.Errorf("%w: first node is not the root", ErrCorrupt)
	}
	for i := 1; i < len(nodes); i++ {
		n := nodes[i]
		if n.ParentIndex < 0 || n.ParentIndex >= len(nodes) || n.ParentIndex == i {
			return fmt.Errorf("%w: node %d has parent index %d", ErrCorrupt, i, n.ParentIndex)
		}
	}

	// Every ancestor chain must end at the root.
	const (
		unknown = iota
		visiting
		reachesRoot
	)
	state := make([]uint8, len(nodes))
	state[0] = reachesRoot
	var chain []int
	for i := range nodes {
		chain = chain[:0]
		j := i
		for state[j] == unknown {
			state[j] = visiting
			chain = append(chain, j)
			j = nodes[j].ParentIndex
		}
		if state[j] == visiting {
			return fmt.Errorf("%w: ancestor cycle through node %d", ErrCorrupt, j)
		}
		for _, k := range chain {
			state[k] = reachesRoot
		}
	}

	// Sorted by name, ties by ancestor chain. Chains are known to end at
	// the root here, so compareNodes terminates.
	for i := 2; i < len(nodes); i++ {
		if compareNodes(nodes, i-1, i) > 0 {
			return fmt.Errorf("%w: node %d is out of order", ErrCorrupt, i)
		}
	}
	return nil
}

func corrupt(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrCorrupt, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	buf.Write(tmp[:binary.PutUvarint(tmp[:], v)])
}

func writeVarint(buf *bytes.Buffer, v int64) {
	var tmp [binary.MaxVarintLen64]byte
	buf.Write(tmp[:binary.PutVarint(tmp[:], v)])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", corrupt("string length", err)
	}
	if n > uint64(r.Len()) {
		return "", fmt.Errorf("%w: string of %d bytes exceeds payload", ErrCorrupt, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", corrupt("string", err)
	}
	return string(b), nil
}
