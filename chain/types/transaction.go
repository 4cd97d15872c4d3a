package types

import (
	"encoding/json"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/deephash"
	"github.com/arpi-project/arpi/lib/merkle"
	"github.com/arpi-project/arpi/lib/sigs"
)

// Transaction moves value, data or both. Binary members (owner, target,
// last_tx, signature, data_root, id) are kept base64url encoded; Data is held
// raw. Quantity, Reward and DataSize are decimal strings.
type Transaction struct {
	Format    int
	ID        string
	LastTx    string
	Owner     string
	Tags      []Tag
	Target    string
	Quantity  string
	Data      []byte
	DataSize  string
	DataRoot  string
	Reward    string
	Signature string

	// Chunks is computed from Data by PrepareChunks and never serialized.
	Chunks *merkle.TxChunks
}

// NewTransaction returns an empty transaction in the current format.
func NewTransaction() *Transaction {
	return &Transaction{
		Format:   build.DefaultTxFormat,
		Quantity: "0",
		Reward:   "0",
		DataSize: "0",
	}
}

// GetOptions selects how Get renders a member.
//
//   - zero value: the stored string; raw Data comes back base64url encoded
//   - Decode: the decoded bytes as a string
//   - Decode and String: the decoded bytes, which must be valid UTF-8
//
// Use GetBytes for decoded binary members.
type GetOptions struct {
	Decode bool
	String bool
}

func (tx *Transaction) field(name string) (string, bool) {
	switch name {
	case "format":
		return strconv.Itoa(tx.Format), true
	case "id":
		return tx.ID, true
	case "last_tx":
		return tx.LastTx, true
	case "owner":
		return tx.Owner, true
	case "target":
		return tx.Target, true
	case "quantity":
		return tx.Quantity, true
	case "data":
		return b64url.Encode(tx.Data), true
	case "data_size":
		return tx.DataSize, true
	case "data_root":
		return tx.DataRoot, true
	case "reward":
		return tx.Reward, true
	case "signature":
		return tx.Signature, true
	default:
		return "", false
	}
}

func (tx *Transaction) Get(field string, opts GetOptions) (string, error) {
	v, ok := tx.field(field)
	if !ok {
		return "", xerrors.Errorf("transaction %q: %w", field, ErrFieldNotFound)
	}
	return getEncoded(v, opts)
}

// GetBytes decodes a base64url member. Data is returned as is.
func (tx *Transaction) GetBytes(field string) ([]byte, error) {
	if field == "data" {
		return tx.Data, nil
	}
	v, ok := tx.field(field)
	if !ok {
		return nil, xerrors.Errorf("transaction %q: %w", field, ErrFieldNotFound)
	}
	b, err := b64url.Decode(v)
	if err != nil {
		return nil, xerrors.Errorf("decoding %s: %w", field, err)
	}
	return b, nil
}

func getEncoded(v string, opts GetOptions) (string, error) {
	if !opts.Decode {
		return v, nil
	}
	b, err := b64url.Decode(v)
	if err != nil {
		return "", err
	}
	if !opts.String {
		return string(b), nil
	}
	return b64url.BytesToString(b)
}

// AddTag appends a tag, encoding name and value.
func (tx *Transaction) AddTag(name, value string) {
	tx.Tags = append(tx.Tags, NewTag(name, value))
}

func (tx *Transaction) SetOwner(owner string) {
	tx.Owner = owner
}

// SignatureFields are the members a signer fills in.
type SignatureFields struct {
	ID        string
	Owner     string
	Tags      []Tag
	Signature string
}

// SetSignature installs a signature. Tags are replaced only when given.
func (tx *Transaction) SetSignature(s SignatureFields) {
	tx.ID = s.ID
	tx.Owner = s.Owner
	if s.Tags != nil {
		tx.Tags = s.Tags
	}
	tx.Signature = s.Signature
}

// SignatureData is the message a signature covers. Format 1 signs a plain
// concatenation, format 2 the deep hash of the header members, which commits
// to the data through data_root.
func (tx *Transaction) SignatureData(m *merkle.Merkle, h sigs.Hasher) ([]byte, error) {
	switch tx.Format {
	case 1:
		return tx.signatureDataV1()
	case 2:
		// a header fetched without its data keeps the data root it was signed with
		if len(tx.Data) > 0 || tx.DataRoot == "" {
			if err := tx.PrepareChunks(m, tx.Data); err != nil {
				return nil, err
			}
		}
		return tx.signatureDataV2(h)
	default:
		return nil, xerrors.Errorf("format %d: %w", tx.Format, ErrUnexpectedFormat)
	}
}

func (tx *Transaction) signatureDataV1() ([]byte, error) {
	parts := make([][]byte, 0, 7+2*len(tx.Tags))
	for _, f := range []string{"owner", "target"} {
		b, err := tx.GetBytes(f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, b)
	}
	parts = append(parts, tx.Data, []byte(tx.Quantity), []byte(tx.Reward))

	lastTx, err := tx.GetBytes("last_tx")
	if err != nil {
		return nil, err
	}
	parts = append(parts, lastTx)

	for _, t := range tx.Tags {
		name, err := t.GetBytes("name")
		if err != nil {
			return nil, err
		}
		value, err := t.GetBytes("value")
		if err != nil {
			return nil, err
		}
		parts = append(parts, name, value)
	}

	return b64url.Concat(parts...), nil
}

func (tx *Transaction) signatureDataV2(h sigs.Hasher) ([]byte, error) {
	if h == nil {
		h = sigs.DefaultHasher
	}

	decoded := map[string][]byte{}
	for _, f := range []string{"owner", "target", "last_tx", "data_root"} {
		b, err := tx.GetBytes(f)
		if err != nil {
			return nil, err
		}
		decoded[f] = b
	}

	tags := make(deephash.List, 0, len(tx.Tags))
	for _, t := range tx.Tags {
		name, err := t.GetBytes("name")
		if err != nil {
			return nil, err
		}
		value, err := t.GetBytes("value")
		if err != nil {
			return nil, err
		}
		tags = append(tags, deephash.List{deephash.Blob(name), deephash.Blob(value)})
	}

	return deephash.New(h).Hash(deephash.List{
		deephash.Blob(strconv.Itoa(tx.Format)),
		deephash.Blob(decoded["owner"]),
		deephash.Blob(decoded["target"]),
		deephash.Blob(tx.Quantity),
		deephash.Blob(tx.Reward),
		deephash.Blob(decoded["last_tx"]),
		tags,
		deephash.Blob(tx.DataSize),
		deephash.Blob(decoded["data_root"]),
	})
}

// Header returns a copy without data, suitable for posting ahead of chunks.
func (tx *Transaction) Header() *Transaction {
	cp := *tx
	cp.Data = []byte{}
	cp.Tags = append([]Tag(nil), tx.Tags...)
	return &cp
}

type txJSON struct {
	Format    *int   `json:"format,omitempty"`
	ID        string `json:"id"`
	LastTx    string `json:"last_tx"`
	Owner     string `json:"owner"`
	Tags      []Tag  `json:"tags"`
	Target    string `json:"target"`
	Quantity  string `json:"quantity"`
	Data      string `json:"data"`
	DataSize  string `json:"data_size"`
	DataRoot  string `json:"data_root"`
	Reward    string `json:"reward"`
	Signature string `json:"signature"`
}

func (tx *Transaction) MarshalJSON() ([]byte, error) {
	format := tx.Format
	tags := tx.Tags
	if tags == nil {
		tags = []Tag{}
	}
	return json.Marshal(txJSON{
		Format:    &format,
		ID:        tx.ID,
		LastTx:    tx.LastTx,
		Owner:     tx.Owner,
		Tags:      tags,
		Target:    tx.Target,
		Quantity:  tx.Quantity,
		Data:      b64url.Encode(tx.Data),
		DataSize:  tx.DataSize,
		DataRoot:  tx.DataRoot,
		Reward:    tx.Reward,
		Signature: tx.Signature,
	})
}

// UnmarshalJSON accepts gateway and serialized transactions. A missing format
// means format 1, which predates the member.
func (tx *Transaction) UnmarshalJSON(b []byte) error {
	var j txJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}

	data, err := b64url.Decode(j.Data)
	if err != nil {
		return xerrors.Errorf("decoding data: %w", err)
	}

	*tx = Transaction{
		Format:    1,
		ID:        j.ID,
		LastTx:    j.LastTx,
		Owner:     j.Owner,
		Tags:      j.Tags,
		Target:    j.Target,
		Quantity:  defaultString(j.Quantity, "0"),
		Data:      data,
		DataSize:  defaultString(j.DataSize, "0"),
		DataRoot:  j.DataRoot,
		Reward:    defaultString(j.Reward, "0"),
		Signature: j.Signature,
	}
	if j.Format != nil && *j.Format != 0 {
		tx.Format = *j.Format
	}
	return nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
