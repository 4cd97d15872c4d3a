package uploader

import (
	"fmt"

	"golang.org/x/xerrors"
)

var (
	ErrNotSigned           = xerrors.New("transaction is not signed")
	ErrChunksNotPrepared   = xerrors.New("transaction chunks not prepared")
	ErrUploadComplete      = xerrors.New("upload is already complete")
	ErrUnableToComplete    = xerrors.New("unable to complete upload")
	ErrInvalidChunkProof   = xerrors.New("unable to validate chunk")
	ErrFatalChunk          = xerrors.New("fatal error uploading chunk")
	ErrPostTransaction     = xerrors.New("unable to upload transaction")
	ErrMalformedSerialized = xerrors.New("serialized object does not match expected format")
	ErrDataMismatch        = xerrors.New("data mismatch: uploader doesn't match provided data")

	_ error = (*ErrChunkProof)(nil)
	_ error = (*ErrPost)(nil)
)

// ErrChunkProof is a chunk whose proof does not validate against the data
// root. It matches ErrInvalidChunkProof.
type ErrChunkProof struct {
	Index int
	Err   error
}

func (e *ErrChunkProof) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrInvalidChunkProof, e.Index, e.Err)
}

func (e *ErrChunkProof) Is(target error) bool {
	return target == ErrInvalidChunkProof
}

func (e *ErrChunkProof) Unwrap() error {
	return e.Err
}

// ErrPost is a failed transaction post. Status is -1 when no response came
// back. It matches ErrPostTransaction.
type ErrPost struct {
	Status  int
	Message string
	Err     error
}

func (e *ErrPost) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", ErrPostTransaction, e.Err)
	}
	return fmt.Sprintf("%s: %d, %s", ErrPostTransaction, e.Status, e.Message)
}

func (e *ErrPost) Is(target error) bool {
	return target == ErrPostTransaction
}

func (e *ErrPost) Unwrap() error {
	return e.Err
}
