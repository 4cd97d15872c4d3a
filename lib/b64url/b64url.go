// Package b64url implements the byte encodings used by every field on the wire:
// URL-safe base64 without padding, and strict UTF-8 text.
package b64url

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"golang.org/x/xerrors"
)

var ErrInvalidUTF8 = xerrors.New("invalid utf-8 sequence")

// Encode returns the unpadded URL-safe base64 form of b.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode accepts both padded and unpadded input.
func Decode(s string) ([]byte, error) {
	out, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, xerrors.Errorf("decoding base64url: %w", err)
	}
	return out, nil
}

// MustDecode is Decode for values known to be valid, such as constants in tests.
func MustDecode(s string) []byte {
	out, err := Decode(s)
	if err != nil {
		panic(err)
	}
	return out
}

func StringToBytes(s string) []byte {
	return []byte(s)
}

// BytesToString fails on malformed UTF-8 instead of substituting U+FFFD.
func BytesToString(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

func StringToB64Url(s string) string {
	return Encode(StringToBytes(s))
}

func B64UrlToString(s string) (string, error) {
	b, err := Decode(s)
	if err != nil {
		return "", err
	}
	return BytesToString(b)
}

// Concat joins buffers into a newly allocated slice.
func Concat(bufs ...[]byte) []byte {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}

	out := make([]byte, 0, n)
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out
}
