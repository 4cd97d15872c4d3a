package sigs

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"sync"

	"golang.org/x/xerrors"
)

// Algorithm names a digest function by its WebCrypto name.
type Algorithm string

const (
	SHA256 Algorithm = "SHA-256"
	SHA384 Algorithm = "SHA-384"
)

var ErrUnknownAlgorithm = xerrors.New("unknown hash algorithm")

// Hasher computes digests. Both the merkle engine and the deep hash take one
// so that a Provider can be swapped in without touching them.
type Hasher interface {
	Hash(data []byte, alg Algorithm) ([]byte, error)
}

// SignOptions tweak a single Sign call. A nil SaltLength selects the
// provider's default.
type SignOptions struct {
	SaltLength *int
}

func SaltLength(n int) SignOptions {
	return SignOptions{SaltLength: &n}
}

// Provider is the capability set the transaction layer needs from a crypto
// backend. Implementations must hold no per-call mutable state: the same
// Provider signs independent transactions concurrently.
type Provider interface {
	Hasher

	GenerateKey(ctx context.Context) (*JWK, error)
	Sign(ctx context.Context, key *JWK, data []byte, opts SignOptions) ([]byte, error)
	// Verify reports a well-formed signature that does not match as false with
	// a nil error; errors are reserved for malformed inputs.
	Verify(ctx context.Context, owner string, data []byte, signature []byte) (bool, error)

	Encrypt(data []byte, key []byte, salt string) ([]byte, error)
	Decrypt(encrypted []byte, key []byte, salt string) ([]byte, error)
}

type stdHasher struct{}

func (stdHasher) Hash(data []byte, alg Algorithm) ([]byte, error) {
	switch alg {
	case SHA256, "":
		sum := sha256.Sum256(data)
		return sum[:], nil
	case SHA384:
		sum := sha512.Sum384(data)
		return sum[:], nil
	default:
		return nil, xerrors.Errorf("%q: %w", alg, ErrUnknownAlgorithm)
	}
}

// DefaultHasher hashes with the standard library.
var DefaultHasher Hasher = stdHasher{}

var (
	providersLk sync.RWMutex
	providers   = map[string]Provider{}
)

// RegisterProvider should be called in init()
func RegisterProvider(name string, p Provider) {
	providersLk.Lock()
	defer providersLk.Unlock()

	providers[name] = p
}

// ProviderFor returns the provider registered under name.
func ProviderFor(name string) (Provider, error) {
	providersLk.RLock()
	defer providersLk.RUnlock()

	p, ok := providers[name]
	if !ok {
		return nil, xerrors.Errorf("no crypto provider registered as %q", name)
	}
	return p, nil
}
