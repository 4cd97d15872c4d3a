package types

import (
	"encoding/json"
	"fmt"
	"math/big"
)

var EmptyInt = BigInt{}

// BigInt is an arbitrary precision integer that travels as a decimal string,
// which is how the gateway encodes quantities and rewards.
type BigInt struct {
	*big.Int
}

func NewInt(i uint64) BigInt {
	return BigInt{big.NewInt(0).SetUint64(i)}
}

func BigFromString(s string) (BigInt, error) {
	v, ok := big.NewInt(0).SetString(s, 10)
	if !ok {
		return BigInt{}, fmt.Errorf("failed to parse %q as a big int", s)
	}

	return BigInt{v}, nil
}

func BigAdd(a, b BigInt) BigInt {
	return BigInt{big.NewInt(0).Add(a.Int, b.Int)}
}

func BigSub(a, b BigInt) BigInt {
	return BigInt{big.NewInt(0).Sub(a.Int, b.Int)}
}

func BigCmp(a, b BigInt) int {
	return a.Int.Cmp(b.Int)
}

func (bi BigInt) Nil() bool {
	return bi.Int == nil
}

func (bi BigInt) String() string {
	if bi.Int == nil {
		return "0"
	}
	return bi.Int.String()
}

func (bi BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(bi.String())
}

func (bi *BigInt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// plain JSON numbers are accepted too
		s = string(b)
	}

	i, ok := big.NewInt(0).SetString(s, 10)
	if !ok {
		return fmt.Errorf("failed to parse %q as a big int", s)
	}

	bi.Int = i
	return nil
}
