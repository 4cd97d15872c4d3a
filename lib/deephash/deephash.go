// Package deephash computes the structural SHA-384 digest that transaction
// signatures cover. Blobs and lists hash differently, so two payloads with the
// same bytes but different nesting never collide.
package deephash

import (
	"strconv"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/lib/sigs"
)

// Chunk is either a Blob or a List.
type Chunk interface {
	deepHashChunk()
}

type Blob []byte

type List []Chunk

func (Blob) deepHashChunk() {}
func (List) deepHashChunk() {}

// Strings is shorthand for a list of UTF-8 blobs.
func Strings(ss ...string) List {
	l := make(List, len(ss))
	for i, s := range ss {
		l[i] = Blob(s)
	}
	return l
}

// Hash digests c with the standard library SHA-384.
func Hash(c Chunk) []byte {
	out, err := New(sigs.DefaultHasher).Hash(c)
	if err != nil {
		// the default hasher only fails for unknown algorithms
		panic(err)
	}
	return out
}

type Hasher struct {
	h sigs.Hasher
}

func New(h sigs.Hasher) *Hasher {
	return &Hasher{h: h}
}

// frame is a list being folded: acc is the running digest and next the index
// of the element to hash once the current child completes.
type frame struct {
	list List
	next int
	acc  []byte
}

// Hash walks c with an explicit stack, so nesting depth is bounded only by
// memory.
func (d *Hasher) Hash(c Chunk) ([]byte, error) {
	var stack []*frame

	// result holds the digest of the most recently finished chunk.
	var result []byte

	push := func(c Chunk) error {
		switch c := c.(type) {
		case Blob:
			tag, err := d.sha384(append([]byte("blob"), strconv.Itoa(len(c))...))
			if err != nil {
				return err
			}
			body, err := d.sha384(c)
			if err != nil {
				return err
			}
			result, err = d.sha384(append(tag, body...))
			return err
		case List:
			acc, err := d.sha384(append([]byte("list"), strconv.Itoa(len(c))...))
			if err != nil {
				return err
			}
			stack = append(stack, &frame{list: c, acc: acc})
			result = nil
			return nil
		case nil:
			return xerrors.New("deephash: nil chunk")
		default:
			return xerrors.Errorf("deephash: unsupported chunk %T", c)
		}
	}

	if err := push(c); err != nil {
		return nil, err
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if result != nil {
			acc, err := d.sha384(append(top.acc, result...))
			if err != nil {
				return nil, err
			}
			top.acc = acc
			top.next++
			result = nil
		}

		if top.next == len(top.list) {
			stack = stack[:len(stack)-1]
			result = top.acc
			continue
		}

		if err := push(top.list[top.next]); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (d *Hasher) sha384(b []byte) ([]byte, error) {
	return d.h.Hash(b, sigs.SHA384)
}
