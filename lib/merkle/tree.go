package merkle

// Node is a *Leaf or a *Branch.
type Node interface {
	NodeID() []byte
	// End is the exclusive upper byte offset covered by the node.
	End() int
}

type Leaf struct {
	ID           []byte
	DataHash     []byte
	MinByteRange int
	MaxByteRange int
}

type Branch struct {
	ID []byte
	// ByteRange is where the right subtree starts.
	ByteRange    int
	MaxByteRange int
	Left         Node
	Right        Node
}

func (l *Leaf) NodeID() []byte   { return l.ID }
func (l *Leaf) End() int         { return l.MaxByteRange }
func (b *Branch) NodeID() []byte { return b.ID }
func (b *Branch) End() int       { return b.MaxByteRange }

func (m *Merkle) GenerateLeaves(chunks []Chunk) []*Leaf {
	leaves := make([]*Leaf, len(chunks))
	for i, c := range chunks {
		leaves[i] = &Leaf{
			ID:           m.hash(m.hash(c.DataHash), m.hash(NoteBytes(c.MaxByteRange))),
			DataHash:     c.DataHash,
			MinByteRange: c.MinByteRange,
			MaxByteRange: c.MaxByteRange,
		}
	}
	return leaves
}

// BuildLayers pairs nodes level by level until one is left. A node without a
// partner moves up to the next level unchanged.
func (m *Merkle) BuildLayers(layer []Node) (Node, error) {
	if len(layer) == 0 {
		return nil, ErrEmptyTree
	}

	for len(layer) > 1 {
		next := make([]Node, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, m.hashBranch(layer[i], layer[i+1]))
		}
		layer = next
	}

	return layer[0], nil
}

func (m *Merkle) hashBranch(left, right Node) *Branch {
	return &Branch{
		ID:           m.hash(m.hash(left.NodeID()), m.hash(right.NodeID()), m.hash(NoteBytes(left.End()))),
		ByteRange:    left.End(),
		MaxByteRange: right.End(),
		Left:         left,
		Right:        right,
	}
}
