// Package rsapss is the RSA-PSS crypto backend: 4096-bit keys, SHA-256 for
// both the message digest and MGF1, 32-byte salts by default.
package rsapss

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/sigs"
)

var log = logging.Logger("rsapss")

const (
	KeyBits           = 4096
	DefaultSaltLength = 32
)

// Provider implements sigs.Provider. The zero value is ready to use.
type Provider struct {
	// KeyBits overrides the modulus length of generated keys.
	KeyBits int
}

var _ sigs.Provider = Provider{}

func (p Provider) keyBits() int {
	if p.KeyBits == 0 {
		return KeyBits
	}
	return p.KeyBits
}

func (Provider) Hash(data []byte, alg sigs.Algorithm) ([]byte, error) {
	return sigs.DefaultHasher.Hash(data, alg)
}

func (p Provider) GenerateKey(ctx context.Context) (*sigs.JWK, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	priv, err := rsa.GenerateKey(rand.Reader, p.keyBits())
	if err != nil {
		return nil, xerrors.Errorf("generating rsa key: %w", err)
	}
	return sigs.JWKFromPrivateKey(priv), nil
}

func (Provider) Sign(ctx context.Context, key *sigs.JWK, data []byte, opts sigs.SignOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	priv, err := key.PrivateKey()
	if err != nil {
		return nil, xerrors.Errorf("loading signing key: %w", err)
	}

	saltLen := DefaultSaltLength
	if opts.SaltLength != nil {
		saltLen = *opts.SaltLength
	}

	digest := sha256.Sum256(data)
	switch {
	case saltLen < 0:
		return nil, xerrors.Errorf("invalid salt length %d", saltLen)
	case saltLen == 0:
		// rsa.PSSOptions treats 0 as "auto", which picks the longest salt.
		return signZeroSalt(priv, digest[:])
	default:
		return rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
			SaltLength: saltLen,
			Hash:       crypto.SHA256,
		})
	}
}

// Verify accepts signatures made with either a 32-byte or an empty salt; both
// are in circulation.
func (Provider) Verify(ctx context.Context, owner string, data []byte, signature []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	pub, err := (&sigs.JWK{Kty: "RSA", N: owner}).PublicKey()
	if err != nil {
		return false, xerrors.Errorf("decoding owner: %w", err)
	}

	digest := sha256.Sum256(data)

	err = rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, &rsa.PSSOptions{
		SaltLength: DefaultSaltLength,
		Hash:       crypto.SHA256,
	})
	if err == nil {
		return true, nil
	}

	if verifyZeroSalt(pub, digest[:], signature) {
		return true, nil
	}

	log.Debugw("signature rejected", "owner", owner[:min(len(owner), 16)], "err", err)
	return false, nil
}

// Address derives the wallet address of an owner modulus.
func Address(owner string) (string, error) {
	n, err := b64url.Decode(owner)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(n)
	return b64url.Encode(sum[:]), nil
}

func init() {
	sigs.RegisterProvider("rsa-pss", Provider{})
}
