package rsapss

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/xerrors"
)

const (
	kdfIterations = 100000
	kdfKeyLen     = 32
	defaultSalt   = "salt"
)

var ErrDecrypt = xerrors.New("decryption failed")

func deriveKey(key []byte, salt string) []byte {
	if salt == "" {
		salt = defaultSalt
	}
	return pbkdf2.Key(key, []byte(salt), kdfIterations, kdfKeyLen, sha256.New)
}

// Encrypt seals data with AES-256-CBC under a PBKDF2-SHA256 derived key. The
// output is the random IV followed by the PKCS#7 padded ciphertext.
func (Provider) Encrypt(data []byte, key []byte, salt string) ([]byte, error) {
	block, err := aes.NewCipher(deriveKey(key, salt))
	if err != nil {
		return nil, xerrors.Errorf("creating cipher: %w", err)
	}

	out := make([]byte, aes.BlockSize, aes.BlockSize+len(data)+aes.BlockSize)
	if _, err := rand.Read(out[:aes.BlockSize]); err != nil {
		return nil, xerrors.Errorf("reading iv: %w", err)
	}

	padded := pkcs7Pad(data, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, out[:aes.BlockSize]).CryptBlocks(ct, padded)

	return append(out, ct...), nil
}

func (Provider) Decrypt(encrypted []byte, key []byte, salt string) ([]byte, error) {
	if len(encrypted) < 2*aes.BlockSize || len(encrypted)%aes.BlockSize != 0 {
		return nil, xerrors.Errorf("ciphertext length %d: %w", len(encrypted), ErrDecrypt)
	}

	block, err := aes.NewCipher(deriveKey(key, salt))
	if err != nil {
		return nil, xerrors.Errorf("creating cipher: %w", err)
	}

	iv, ct := encrypted[:aes.BlockSize], encrypted[aes.BlockSize:]
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	return pkcs7Unpad(pt, aes.BlockSize)
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrDecrypt
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, ErrDecrypt
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrDecrypt
		}
	}
	return data[:len(data)-n], nil
}
