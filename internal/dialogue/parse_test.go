package dialogue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQty(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"3", 3, true},
		{" 12 dona", 12, true},
		{"0", 0, false},
		{"-2", 0, false},
		{"1.5", 0, false},
		{"two", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseQty(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"5000", 5000, true},
		{"5 000", 5000, true},
		{"5.000", 5000, true},
		{"5,000", 5000, true},
		{"5000 so'm", 5000, true},
		{"0", 0, true},
		{"5.5", 0, false},
		{"", 0, false},
		{"5..000", 0, false},
		{"5 ,000", 0, false},
		{"1 000 000 000 000", 1_000_000_000_000, true},
		{"1 000 000 000 001", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParsePrice(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseUSD(t *testing.T) {
	got, ok := ParseUSD("2,5")
	require.True(t, ok)
	require.Equal(t, "2.5", got.String())

	got, ok = ParseUSD("$3 usd")
	require.True(t, ok)
	require.Equal(t, "3", got.String())

	_, ok = ParseUSD("-1")
	require.False(t, ok)
	_, ok = ParseUSD("abc")
	require.False(t, ok)
}

func TestParseID(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"42", 42, true},
		{"#42", 42, true},
		{"№ 7", 7, true},
		{"#12 Cola 1.5 (4 dona)", 12, true},
		{"7up", 0, false},
		{"0", 0, false},
		{"cola", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseID(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}
