package rsapss

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"math/big"

	"golang.org/x/xerrors"
)

// emsaPSSEncodeNoSalt is EMSA-PSS-ENCODE from RFC 8017 section 9.1.1 with an
// empty salt, SHA-256 and MGF1-SHA-256. Without a salt the encoding is a pure
// function of the digest.
func emsaPSSEncodeNoSalt(mHash []byte, emBits int) ([]byte, error) {
	hLen := sha256.Size
	emLen := (emBits + 7) / 8
	if len(mHash) != hLen {
		return nil, xerrors.New("digest has wrong length")
	}
	if emLen < hLen+2 {
		return nil, xerrors.New("key too small for pss encoding")
	}

	var prefix [8]byte
	h := sha256.New()
	h.Write(prefix[:])
	h.Write(mHash)
	H := h.Sum(nil)

	db := make([]byte, emLen-hLen-1)
	db[len(db)-1] = 0x01

	mgf1XOR(db, H)
	db[0] &= 0xff >> (8*emLen - emBits)

	em := make([]byte, 0, emLen)
	em = append(em, db...)
	em = append(em, H...)
	em = append(em, 0xbc)
	return em, nil
}

func mgf1XOR(out []byte, seed []byte) {
	var counter [4]byte
	var done int
	for i := uint32(0); done < len(out); i++ {
		binary.BigEndian.PutUint32(counter[:], i)

		h := sha256.New()
		h.Write(seed)
		h.Write(counter[:])
		digest := h.Sum(nil)

		for j := 0; j < len(digest) && done < len(out); j++ {
			out[done] ^= digest[j]
			done++
		}
	}
}

func signZeroSalt(priv *rsa.PrivateKey, digest []byte) ([]byte, error) {
	em, err := emsaPSSEncodeNoSalt(digest, priv.N.BitLen()-1)
	if err != nil {
		return nil, err
	}

	m := new(big.Int).SetBytes(em)
	if m.Cmp(priv.N) >= 0 {
		return nil, xerrors.New("encoded message out of range")
	}

	s := new(big.Int).Exp(m, priv.D, priv.N)
	sig := s.FillBytes(make([]byte, priv.Size()))

	if !verifyZeroSalt(&priv.PublicKey, digest, sig) {
		return nil, xerrors.New("zero-salt signature failed self-check")
	}
	return sig, nil
}

func verifyZeroSalt(pub *rsa.PublicKey, digest []byte, sig []byte) bool {
	if len(sig) != pub.Size() {
		return false
	}

	s := new(big.Int).SetBytes(sig)
	if s.Cmp(pub.N) >= 0 {
		return false
	}
	m := new(big.Int).Exp(s, big.NewInt(int64(pub.E)), pub.N)

	emBits := pub.N.BitLen() - 1
	emLen := (emBits + 7) / 8
	expected, err := emsaPSSEncodeNoSalt(digest, emBits)
	if err != nil {
		return false
	}

	if m.BitLen() > emLen*8 {
		return false
	}
	got := m.FillBytes(make([]byte, emLen))
	return subtle.ConstantTimeCompare(got, expected) == 1
}
