package types

import "golang.org/x/xerrors"

var (
	ErrUnexpectedFormat  = xerrors.New("unexpected transaction format")
	ErrFieldNotFound     = xerrors.New("field not found")
	ErrChunksNotPrepared = xerrors.New("transaction chunks not prepared")
	ErrChunkIndex        = xerrors.New("chunk index out of range")
)
