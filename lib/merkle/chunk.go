package merkle

import (
	"github.com/arpi-project/arpi/build"
)

// Chunk is a contiguous byte range of the data and the SHA-256 of its bytes.
// MaxByteRange is exclusive.
type Chunk struct {
	DataHash     []byte
	MinByteRange int
	MaxByteRange int
}

func (c Chunk) Size() int {
	return c.MaxByteRange - c.MinByteRange
}

// ChunkData splits data into MaxChunkSize pieces. When the piece after a full
// one would be shorter than MinChunkSize the remainder is split in two halves
// instead. The last chunk holds whatever is left and may be empty.
func (m *Merkle) ChunkData(data []byte) []Chunk {
	var chunks []Chunk

	rest := data
	cursor := 0

	for len(rest) >= build.MaxChunkSize {
		size := build.MaxChunkSize

		if next := len(rest) - build.MaxChunkSize; next > 0 && next < build.MinChunkSize {
			size = (len(rest) + 1) / 2
		}

		chunks = append(chunks, Chunk{
			DataHash:     m.hash(rest[:size]),
			MinByteRange: cursor,
			MaxByteRange: cursor + size,
		})
		cursor += size
		rest = rest[size:]
	}

	return append(chunks, Chunk{
		DataHash:     m.hash(rest),
		MinByteRange: cursor,
		MaxByteRange: cursor + len(rest),
	})
}

func ChunkData(data []byte) []Chunk {
	return defaultMerkle.ChunkData(data)
}
