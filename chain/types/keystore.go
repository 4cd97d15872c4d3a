package types

import (
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/lib/sigs"
)

var (
	// ErrKeyInfoNotFound is returned when key is not found in keystore
	ErrKeyInfoNotFound = xerrors.New("key info not found")
	// ErrKeyExists is returned when a key with the same name is already stored
	ErrKeyExists = xerrors.New("key already exists")
)

// KeyType names the signature scheme a stored key belongs to.
type KeyType string

const KTRSAPSS KeyType = "rsa-pss"

// KeyInfo is used for storing keys in KeyStore
type KeyInfo struct {
	Type KeyType
	JWK  *sigs.JWK
}

// KeyStore is used for storing secret keys
type KeyStore interface {
	// List lists all the keys stored in the KeyStore
	List() ([]string, error)
	// Get gets a key out of keystore and returns KeyInfo corresponding to named key
	Get(string) (KeyInfo, error)
	// Put saves a key info under given name
	Put(string, KeyInfo) error
	// Delete removes a key from keystore
	Delete(string) error
}
