package types

import (
	"strconv"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/merkle"
)

// ChunkPayload is the body of a chunk upload. Every member is a string on the
// wire, offsets included.
type ChunkPayload struct {
	DataRoot string `json:"data_root"`
	DataSize string `json:"data_size"`
	DataPath string `json:"data_path"`
	Offset   string `json:"offset"`
	Chunk    string `json:"chunk"`
}

// PrepareChunks computes the chunks, proofs and data root of data once. Empty
// data has no chunks and an empty data root.
func (tx *Transaction) PrepareChunks(m *merkle.Merkle, data []byte) error {
	if tx.Chunks != nil {
		return nil
	}

	if len(data) == 0 {
		tx.Chunks = &merkle.TxChunks{DataRoot: []byte{}}
		tx.DataRoot = ""
		return nil
	}

	if m == nil {
		m = merkle.New(nil)
	}
	chunks, err := m.GenerateTransactionChunks(data)
	if err != nil {
		return xerrors.Errorf("generating chunks: %w", err)
	}
	tx.Chunks = chunks
	tx.DataRoot = b64url.Encode(chunks.DataRoot)
	return nil
}

// GetChunk builds the upload payload of chunk idx of data.
func (tx *Transaction) GetChunk(idx int, data []byte) (*ChunkPayload, error) {
	if tx.Chunks == nil {
		if err := tx.PrepareChunks(nil, data); err != nil {
			return nil, err
		}
	}
	if idx < 0 || idx >= len(tx.Chunks.Chunks) {
		return nil, xerrors.Errorf("chunk %d of %d: %w", idx, len(tx.Chunks.Chunks), ErrChunkIndex)
	}

	proof := tx.Chunks.Proofs[idx]
	chunk := tx.Chunks.Chunks[idx]
	if chunk.MaxByteRange > len(data) {
		return nil, xerrors.Errorf("chunk %d ends at %d past %d bytes of data: %w", idx, chunk.MaxByteRange, len(data), ErrChunkIndex)
	}

	return &ChunkPayload{
		DataRoot: tx.DataRoot,
		DataSize: tx.DataSize,
		DataPath: b64url.Encode(proof.Proof),
		Offset:   strconv.Itoa(proof.Offset),
		Chunk:    b64url.Encode(data[chunk.MinByteRange:chunk.MaxByteRange]),
	}, nil
}
