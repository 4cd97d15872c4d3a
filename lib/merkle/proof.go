package merkle

import (
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/build"
)

// Proof is the inclusion path of the chunk ending at Offset+1. From the root
// down it holds leftID, rightID and the split note of every branch, then the
// chunk's data hash and end note.
type Proof struct {
	Offset int
	Proof  []byte
}

// GenerateProofs returns one proof per leaf in left to right order.
func (m *Merkle) GenerateProofs(root Node) []Proof {
	type item struct {
		node   Node
		prefix []byte
	}

	var proofs []Proof
	stack := []item{{node: root}}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n := it.node.(type) {
		case *Leaf:
			proof := make([]byte, 0, len(it.prefix)+build.HashSize+build.NoteSize)
			proof = append(proof, it.prefix...)
			proof = append(proof, n.DataHash...)
			proof = append(proof, NoteBytes(n.MaxByteRange)...)

			proofs = append(proofs, Proof{Offset: n.MaxByteRange - 1, Proof: proof})
		case *Branch:
			prefix := make([]byte, 0, len(it.prefix)+2*build.HashSize+build.NoteSize)
			prefix = append(prefix, it.prefix...)
			prefix = append(prefix, n.Left.NodeID()...)
			prefix = append(prefix, n.Right.NodeID()...)
			prefix = append(prefix, NoteBytes(n.ByteRange)...)

			// right first so the left subtree is emitted first
			stack = append(stack, item{n.Right, prefix}, item{n.Left, prefix})
		default:
			panic(xerrors.Errorf("unexpected merkle node %T", n))
		}
	}

	return proofs
}

// PathResult describes the chunk a valid proof points at.
type PathResult struct {
	Offset     int
	LeftBound  int
	RightBound int
	ChunkSize  int
	// DataHash is the SHA-256 of the chunk bytes committed by the proof.
	DataHash []byte
}

// ValidatePath walks path from the node id down to a leaf, choosing the side
// that contains dest, and checks every hash on the way. Bounds narrow at each
// branch. Destinations past the right bound are clamped to its last byte and
// negative ones to zero.
func (m *Merkle) ValidatePath(id []byte, dest, leftBound, rightBound int, path []byte) (*PathResult, error) {
	if rightBound <= 0 {
		return nil, xerrors.Errorf("right bound %d: %w", rightBound, ErrInvalidProof)
	}
	if dest >= rightBound {
		dest = rightBound - 1
	}
	if dest < 0 {
		dest = 0
	}

	const leafLen = build.HashSize + build.NoteSize
	const branchLen = 2*build.HashSize + build.NoteSize

	for {
		if len(path) == leafLen {
			dataHash := path[:build.HashSize]
			note := path[build.HashSize:]

			if !ArrayCompare(id, m.hash(m.hash(dataHash), m.hash(note))) {
				return nil, xerrors.Errorf("leaf hash mismatch: %w", ErrInvalidProof)
			}

			return &PathResult{
				Offset:     rightBound - 1,
				LeftBound:  leftBound,
				RightBound: rightBound,
				ChunkSize:  rightBound - leftBound,
				DataHash:   append([]byte(nil), dataHash...),
			}, nil
		}

		if len(path) < branchLen {
			return nil, xerrors.Errorf("truncated proof of %d bytes: %w", len(path), ErrInvalidProof)
		}

		left := path[:build.HashSize]
		right := path[build.HashSize : 2*build.HashSize]
		note := path[2*build.HashSize : branchLen]
		offset := BufferToInt(note)

		if !ArrayCompare(id, m.hash(m.hash(left), m.hash(right), m.hash(note))) {
			return nil, xerrors.Errorf("branch hash mismatch: %w", ErrInvalidProof)
		}

		path = path[branchLen:]
		if dest < offset {
			id = left
			rightBound = min(rightBound, offset)
		} else {
			id = right
			leftBound = max(leftBound, offset)
		}
	}
}
