package transactions

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/chain/wallet"
	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/sigs"
)

// Sign signs tx in place. A local key fills in owner, signature and id; an
// external signer's id, owner, tags and signature are copied over.
func (s *Service) Sign(ctx context.Context, tx *types.Transaction, src wallet.SigningSource, opts sigs.SignOptions) error {
	switch src := src.(type) {
	case wallet.LocalKey:
		if src.JWK == nil {
			return ErrNoSigningSource
		}
		tx.SetOwner(src.JWK.N)

		payload, err := tx.SignatureData(s.merkle, s.crypto)
		if err != nil {
			return xerrors.Errorf("computing signature data: %w", err)
		}
		raw, err := s.crypto.Sign(ctx, src.JWK, payload, opts)
		if err != nil {
			return xerrors.Errorf("signing: %w", err)
		}
		id, err := s.crypto.Hash(raw, sigs.SHA256)
		if err != nil {
			return err
		}

		tx.SetSignature(types.SignatureFields{
			ID:        b64url.Encode(id),
			Owner:     src.JWK.N,
			Signature: b64url.Encode(raw),
		})

	case wallet.External:
		if src.Signer == nil {
			return ErrNoSigningSource
		}
		signed, err := src.Signer.SignTransaction(ctx, tx, opts)
		if err != nil {
			return xerrors.Errorf("unable to sign transaction: %w", err)
		}
		tx.SetSignature(types.SignatureFields{
			ID:        signed.ID,
			Owner:     signed.Owner,
			Tags:      signed.Tags,
			Signature: signed.Signature,
		})

	default:
		return ErrNoSigningSource
	}

	log.Debugw("signed transaction", "id", tx.ID)
	return nil
}

// Verify checks that the id is the hash of the signature, which is an error
// when it is not, and then that the owner signed the current members.
func (s *Service) Verify(ctx context.Context, tx *types.Transaction) (bool, error) {
	payload, err := tx.SignatureData(s.merkle, s.crypto)
	if err != nil {
		return false, xerrors.Errorf("computing signature data: %w", err)
	}

	raw, err := tx.GetBytes("signature")
	if err != nil {
		return false, err
	}
	sum, err := s.crypto.Hash(raw, sigs.SHA256)
	if err != nil {
		return false, err
	}
	if tx.ID != b64url.Encode(sum) {
		return false, ErrInvalidSignatureID
	}

	return s.crypto.Verify(ctx, tx.Owner, payload, raw)
}
