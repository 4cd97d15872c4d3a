package types

import (
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/lib/b64url"
)

// Tag is a name/value pair attached to a transaction. Both members are stored
// base64url encoded, as they appear on the wire.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewTag encodes a plain name and value.
func NewTag(name, value string) Tag {
	return Tag{
		Name:  b64url.StringToB64Url(name),
		Value: b64url.StringToB64Url(value),
	}
}

// Get returns a member under the GetOptions contract, see Transaction.Get.
func (t Tag) Get(field string, opts GetOptions) (string, error) {
	switch field {
	case "name":
		return getEncoded(t.Name, opts)
	case "value":
		return getEncoded(t.Value, opts)
	default:
		return "", xerrors.Errorf("tag %q: %w", field, ErrFieldNotFound)
	}
}

// GetBytes returns the decoded bytes of name or value.
func (t Tag) GetBytes(field string) ([]byte, error) {
	s, err := t.Get(field, GetOptions{})
	if err != nil {
		return nil, err
	}
	return b64url.Decode(s)
}

// DecodedTags returns every tag as a plain name/value map entry list, in order.
func DecodedTags(tags []Tag) ([][2]string, error) {
	var err error
	out := lo.Map(tags, func(t Tag, _ int) [2]string {
		name, nerr := t.Get("name", GetOptions{Decode: true, String: true})
		value, verr := t.Get("value", GetOptions{Decode: true, String: true})
		if err == nil {
			err = lo.Ternary(nerr != nil, nerr, verr)
		}
		return [2]string{name, value}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
