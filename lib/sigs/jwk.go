package sigs

import (
	"crypto/rsa"
	"encoding/json"
	"math/big"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/lib/b64url"
)

// PublicExponent is the only exponent wallets use.
const PublicExponent = 65537

// JWK is an RSA key in JSON Web Key form, which is also the wallet file format.
// Every numeric member is base64url encoded big-endian.
type JWK struct {
	Kty string `json:"kty"`
	E   string `json:"e"`
	N   string `json:"n"`
	D   string `json:"d,omitempty"`
	P   string `json:"p,omitempty"`
	Q   string `json:"q,omitempty"`
	Dp  string `json:"dp,omitempty"`
	Dq  string `json:"dq,omitempty"`
	Qi  string `json:"qi,omitempty"`
}

func ParseJWK(b []byte) (*JWK, error) {
	var k JWK
	if err := json.Unmarshal(b, &k); err != nil {
		return nil, xerrors.Errorf("parsing jwk: %w", err)
	}
	if k.Kty != "RSA" {
		return nil, xerrors.Errorf("unsupported key type %q", k.Kty)
	}
	if k.N == "" {
		return nil, xerrors.New("jwk has no modulus")
	}
	return &k, nil
}

// JWKFromPrivateKey exports priv including the CRT parameters.
func JWKFromPrivateKey(priv *rsa.PrivateKey) *JWK {
	priv.Precompute()

	return &JWK{
		Kty: "RSA",
		E:   b64url.Encode(big.NewInt(int64(priv.E)).Bytes()),
		N:   b64url.Encode(priv.N.Bytes()),
		D:   b64url.Encode(priv.D.Bytes()),
		P:   b64url.Encode(priv.Primes[0].Bytes()),
		Q:   b64url.Encode(priv.Primes[1].Bytes()),
		Dp:  b64url.Encode(priv.Precomputed.Dp.Bytes()),
		Dq:  b64url.Encode(priv.Precomputed.Dq.Bytes()),
		Qi:  b64url.Encode(priv.Precomputed.Qinv.Bytes()),
	}
}

// Public strips the private members.
func (k *JWK) Public() *JWK {
	return &JWK{Kty: k.Kty, E: k.E, N: k.N}
}

func (k *JWK) IsPrivate() bool {
	return k.D != ""
}

func (k *JWK) PublicKey() (*rsa.PublicKey, error) {
	n, err := decodeInt(k.N)
	if err != nil {
		return nil, xerrors.Errorf("modulus: %w", err)
	}
	e := big.NewInt(PublicExponent)
	if k.E != "" {
		if e, err = decodeInt(k.E); err != nil {
			return nil, xerrors.Errorf("exponent: %w", err)
		}
	}
	if !e.IsInt64() || e.Int64() > 1<<31-1 {
		return nil, xerrors.New("exponent out of range")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func (k *JWK) PrivateKey() (*rsa.PrivateKey, error) {
	if !k.IsPrivate() {
		return nil, xerrors.New("jwk holds no private key")
	}
	pub, err := k.PublicKey()
	if err != nil {
		return nil, err
	}

	priv := &rsa.PrivateKey{PublicKey: *pub}
	if priv.D, err = decodeInt(k.D); err != nil {
		return nil, xerrors.Errorf("private exponent: %w", err)
	}
	p, err := decodeInt(k.P)
	if err != nil {
		return nil, xerrors.Errorf("prime p: %w", err)
	}
	q, err := decodeInt(k.Q)
	if err != nil {
		return nil, xerrors.Errorf("prime q: %w", err)
	}
	priv.Primes = []*big.Int{p, q}

	if err := priv.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid rsa key: %w", err)
	}
	priv.Precompute()
	return priv, nil
}

// PublicModulus is the transaction owner for this key.
func (k *JWK) PublicModulus() string {
	return k.N
}

func decodeInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, xerrors.New("missing value")
	}
	b, err := b64url.Decode(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
