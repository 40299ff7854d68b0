package quotes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTradingTime(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	cases := []struct {
		name string
		when time.Time
		want bool
	}{
		{"monday morning open", time.Date(2026, 8, 3, 10, 0, 0, 0, loc), true},
		{"monday lunch break", time.Date(2026, 8, 3, 12, 0, 0, 0, loc), false},
		{"monday afternoon open", time.Date(2026, 8, 3, 14, 0, 0, 0, loc), true},
		{"monday closing buffer", time.Date(2026, 8, 3, 15, 15, 0, 0, loc), true},
		{"monday after close", time.Date(2026, 8, 3, 15, 31, 0, 0, loc), false},
		{"saturday", time.Date(2026, 8, 8, 10, 0, 0, 0, loc), false},
		{"before open", time.Date(2026, 8, 3, 9, 0, 0, 0, loc), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTradingTime(tc.when))
		})
	}
}
