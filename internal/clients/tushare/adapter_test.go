package tushare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToTSCode(t *testing.T) {
	cases := map[string]string{
		"600519": "600519.SH",
		"000001": "000001.SZ",
		"300750": "300750.SZ",
		"830799": "830799.BJ",
	}
	for in, want := range cases {
		assert.Equalf(t, want, toTSCode(in), "toTSCode(%q)", in)
	}
}

func TestJoinComma(t *testing.T) {
	assert.Equal(t, "a,b,c", joinComma([]string{"a", "b", "c"}))
	assert.Empty(t, joinComma(nil))
}

func TestNum(t *testing.T) {
	assert.Equal(t, 1.5, num(float64(1.5)))
	assert.Equal(t, 2.5, num("2.5"))
	assert.Equal(t, float64(0), num(nil))
}

func TestIsPermissionDenied(t *testing.T) {
	assert.True(t, IsPermissionDenied(&APIError{Code: 2002}))
	assert.True(t, IsPermissionDenied(&APIError{Code: 40203}))
	assert.False(t, IsPermissionDenied(&APIError{Code: 500}))
}
