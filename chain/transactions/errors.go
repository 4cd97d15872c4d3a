package transactions

import "golang.org/x/xerrors"

var (
	ErrMissingData     = xerrors.New("a new transaction must have a data value, or target and quantity values")
	ErrUnsupportedData = xerrors.New("data must be a byte slice or a string")
	ErrNoSigningSource = xerrors.New("a signing source must be provided")
	ErrMustProvideData = xerrors.New("must provide data when resuming upload")

	ErrInvalidSignatureID = xerrors.New("invalid transaction signature or ID! The transaction ID doesn't match the expected SHA-256 hash of the signature")

	ErrTxPending  = xerrors.New("TX_PENDING")
	ErrTxNotFound = xerrors.New("TX_NOT_FOUND")
	ErrTxFailed   = xerrors.New("TX_FAILED")
	ErrTxInvalid  = xerrors.New("TX_INVALID")
)
