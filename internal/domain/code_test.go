package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCodeRoundTrip(t *testing.T) {
	cases := map[string]string{
		"sz000001":  "000001",
		"000001":    "000001",
		"1":         "000001",
		"SZ.000001": "000001",
		"600036":    "600036",
		"000001.SZ": "000001",
	}
	for in, want := range cases {
		got := NormalizeCode(in)
		assert.Equalf(t, want, got, "NormalizeCode(%q)", in)
		assert.Equalf(t, got, NormalizeCode(got), "NormalizeCode not idempotent for %q", in)
	}
}

func TestFullSymbol(t *testing.T) {
	cases := map[string]string{
		"600036": "600036.SS",
		"000001": "000001.SZ",
		"430001": "430001.BJ",
		"688001": "688001.SS",
		"300750": "300750.SZ",
	}
	for code, want := range cases {
		assert.Equalf(t, want, FullSymbol(code), "FullSymbol(%q)", code)
	}
}

func TestTushareCode(t *testing.T) {
	code, suffix := TushareCode("000001.SZ")
	assert.Equal(t, "000001", code)
	assert.Equal(t, "SZ", suffix)
}
