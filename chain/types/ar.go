package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/arpi-project/arpi/build"
)

// AR is an amount held in winston, the smallest unit. One AR is
// build.WinstonPrecision winston.
type AR BigInt

func (a AR) String() string {
	return a.Unitless() + " AR"
}

func (a AR) Unitless() string {
	if a.Int == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(a.Int, big.NewInt(build.WinstonPrecision))
	if r.Sign() == 0 {
		return "0"
	}
	return strings.TrimRight(strings.TrimRight(r.FloatString(build.WinstonDecimals), "0"), ".")
}

// Winston is the integer amount as a decimal string.
func (a AR) Winston() string {
	return BigInt(a).String()
}

// ParseAR reads a decimal AR amount. Values finer than one winston are
// rejected.
func ParseAR(s string) (AR, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "AR"))

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return AR{}, fmt.Errorf("failed to parse %q as a decimal number", s)
	}

	r = r.Mul(r, big.NewRat(build.WinstonPrecision, 1))
	if !r.IsInt() {
		return AR{}, fmt.Errorf("invalid AR value: %q", s)
	}

	return AR{r.Num()}, nil
}

// ParseWinston reads an integer winston amount.
func ParseWinston(s string) (AR, error) {
	bi, err := BigFromString(strings.TrimSpace(s))
	if err != nil {
		return AR{}, err
	}
	return AR(bi), nil
}

type ARFormat struct {
	// Decimals is the number of fractional digits; 0 means WinstonDecimals.
	Decimals int
	// Formatted groups the integer part with commas.
	Formatted bool
}

// WinstonToAR renders a winston amount in AR with a fixed number of decimals.
// Extra precision is rounded half away from zero.
func WinstonToAR(winston string, f ARFormat) (string, error) {
	w, err := ParseWinston(winston)
	if err != nil {
		return "", err
	}

	dec := f.Decimals
	if dec <= 0 {
		dec = build.WinstonDecimals
	}

	r := new(big.Rat).SetFrac(w.Int, big.NewInt(build.WinstonPrecision))
	out := r.FloatString(dec)
	if !f.Formatted {
		return out, nil
	}

	intPart, frac, _ := strings.Cut(out, ".")
	neg := strings.HasPrefix(intPart, "-")
	ip, _ := new(big.Int).SetString(strings.TrimPrefix(intPart, "-"), 10)

	out = humanize.BigComma(ip)
	if neg {
		out = "-" + out
	}
	if frac != "" {
		out += "." + frac
	}
	return out, nil
}

// ARToWinston converts a decimal AR amount to integer winston.
func ARToWinston(ar string) (string, error) {
	a, err := ParseAR(ar)
	if err != nil {
		return "", err
	}
	return a.Winston(), nil
}

func CompareWinston(a, b string) (int, error) {
	x, err := ParseWinston(a)
	if err != nil {
		return 0, err
	}
	y, err := ParseWinston(b)
	if err != nil {
		return 0, err
	}
	return BigCmp(BigInt(x), BigInt(y)), nil
}

func AddWinston(a, b string) (string, error) {
	return winstonOp(a, b, BigAdd)
}

func SubWinston(a, b string) (string, error) {
	return winstonOp(a, b, BigSub)
}

func winstonOp(a, b string, op func(BigInt, BigInt) BigInt) (string, error) {
	x, err := ParseWinston(a)
	if err != nil {
		return "", err
	}
	y, err := ParseWinston(b)
	if err != nil {
		return "", err
	}
	return op(BigInt(x), BigInt(y)).String(), nil
}
