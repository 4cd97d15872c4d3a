package wallet

import (
	"context"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/sigs"
)

// SigningSource is what a transaction is signed with: either a LocalKey or an
// External signer.
type SigningSource interface {
	signingSource()
}

// LocalKey signs in process with a private JWK.
type LocalKey struct {
	JWK *sigs.JWK
}

// ExternalSigner signs transactions out of process, for example in a
// hardware wallet or a browser extension. It returns a signed copy of tx
// whose id, owner, tags and signature are adopted by the caller.
type ExternalSigner interface {
	SignTransaction(ctx context.Context, tx *types.Transaction, opts sigs.SignOptions) (*types.Transaction, error)
}

// External wraps an ExternalSigner as a SigningSource.
type External struct {
	Signer ExternalSigner
}

func (LocalKey) signingSource() {}
func (External) signingSource() {}
