package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAR_Format(t *testing.T) {
	testValues := []string{
		"0", "1", "999", "1000000000000", "1500000000000", "123456789012345678",
	}
	testResults := []string{
		"0 AR", "0.000000000001 AR", "0.000000000999 AR", "1 AR", "1.5 AR", "123456.789012345678 AR",
	}

	for i, v := range testValues {
		a, err := ParseWinston(v)
		require.NoError(t, err)
		require.Equal(t, testResults[i], a.String())
	}
}

func TestParseAR(t *testing.T) {
	a, err := ParseAR("1.5")
	require.NoError(t, err)
	require.Equal(t, "1500000000000", a.Winston())

	a, err = ParseAR("0.000000000001 AR")
	require.NoError(t, err)
	require.Equal(t, "1", a.Winston())

	_, err = ParseAR("0.0000000000001")
	require.Error(t, err)

	_, err = ParseAR("abc")
	require.Error(t, err)
}

func TestWinstonToAR(t *testing.T) {
	s, err := WinstonToAR("1500000000000", ARFormat{})
	require.NoError(t, err)
	require.Equal(t, "1.500000000000", s)

	s, err = WinstonToAR("1234567891234567890", ARFormat{Decimals: 2, Formatted: true})
	require.NoError(t, err)
	require.Equal(t, "1,234,567.89", s)

	w, err := ARToWinston("2")
	require.NoError(t, err)
	require.Equal(t, "2000000000000", w)
}

func TestWinstonArithmetic(t *testing.T) {
	c, err := CompareWinston("10", "9")
	require.NoError(t, err)
	require.Equal(t, 1, c)

	s, err := AddWinston("10", "9")
	require.NoError(t, err)
	require.Equal(t, "19", s)

	s, err = SubWinston("9", "10")
	require.NoError(t, err)
	require.Equal(t, "-1", s)

	_, err = AddWinston("x", "1")
	require.Error(t, err)
}
