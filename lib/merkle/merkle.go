// Package merkle splits data into chunks and builds the binary Merkle tree
// whose root commits a transaction to its data. Every leaf gets an inclusion
// proof that a node can check against the root without the rest of the data.
package merkle

import (
	"crypto/subtle"
	"encoding/binary"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/lib/sigs"
)

var log = logging.Logger("merkle")

var (
	ErrEmptyTree    = xerrors.New("cannot build a tree without nodes")
	ErrInvalidProof = xerrors.New("invalid merkle proof")
)

// Merkle is the chunking and proof engine. The zero value hashes with the
// standard library.
type Merkle struct {
	h sigs.Hasher
}

func New(h sigs.Hasher) *Merkle {
	return &Merkle{h: h}
}

var defaultMerkle = New(sigs.DefaultHasher)

func (m *Merkle) hash(parts ...[]byte) []byte {
	h := m.h
	if h == nil {
		h = sigs.DefaultHasher
	}

	var buf []byte
	if len(parts) == 1 {
		buf = parts[0]
	} else {
		for _, p := range parts {
			buf = append(buf, p...)
		}
	}

	out, err := h.Hash(buf, sigs.SHA256)
	if err != nil {
		// a Hasher that cannot do SHA-256 is unusable for merkle work
		panic(xerrors.Errorf("merkle hash: %w", err))
	}
	return out
}

// NoteBytes encodes n as a NoteSize byte big-endian integer.
func NoteBytes(n int) []byte {
	buf := make([]byte, build.NoteSize)
	binary.BigEndian.PutUint64(buf[build.NoteSize-8:], uint64(n))
	return buf
}

// BufferToInt decodes a big-endian note.
func BufferToInt(b []byte) int {
	var n int
	for _, c := range b {
		n = n<<8 | int(c)
	}
	return n
}

// ArrayCompare reports whether a and b hold the same bytes.
func ArrayCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// TxChunks is everything a transaction needs to be uploaded in chunks.
type TxChunks struct {
	DataRoot []byte
	Chunks   []Chunk
	Proofs   []Proof
}

// GenerateTransactionChunks chunks data, builds its tree and proofs. A trailing
// zero-length chunk is dropped together with its proof; for empty input this
// leaves no chunks at all.
func (m *Merkle) GenerateTransactionChunks(data []byte) (*TxChunks, error) {
	chunks := m.ChunkData(data)
	root, err := m.BuildLayers(nodes(m.GenerateLeaves(chunks)))
	if err != nil {
		return nil, err
	}
	proofs := m.GenerateProofs(root)

	if last := chunks[len(chunks)-1]; last.MaxByteRange-last.MinByteRange == 0 {
		chunks = chunks[:len(chunks)-1]
		proofs = proofs[:len(proofs)-1]
	}

	log.Debugw("generated transaction chunks", "size", len(data), "chunks", len(chunks))

	return &TxChunks{
		DataRoot: root.NodeID(),
		Chunks:   chunks,
		Proofs:   proofs,
	}, nil
}

func (m *Merkle) ComputeRootHash(data []byte) ([]byte, error) {
	root, err := m.GenerateTree(data)
	if err != nil {
		return nil, err
	}
	return root.NodeID(), nil
}

func (m *Merkle) GenerateTree(data []byte) (Node, error) {
	return m.BuildLayers(nodes(m.GenerateLeaves(m.ChunkData(data))))
}

func GenerateTransactionChunks(data []byte) (*TxChunks, error) {
	return defaultMerkle.GenerateTransactionChunks(data)
}

func ComputeRootHash(data []byte) ([]byte, error) {
	return defaultMerkle.ComputeRootHash(data)
}

func ValidatePath(id []byte, dest, leftBound, rightBound int, path []byte) (*PathResult, error) {
	return defaultMerkle.ValidatePath(id, dest, leftBound, rightBound, path)
}

func nodes(leaves []*Leaf) []Node {
	out := make([]Node, len(leaves))
	for i, l := range leaves {
		out[i] = l
	}
	return out
}
