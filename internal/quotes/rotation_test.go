package quotes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatorAdvancesAndWraps(t *testing.T) {
	r := NewRotator()
	got := []string{r.Next(), r.Next(), r.Next(), r.Next()}
	want := []string{"tushare", "akshare_eastmoney", "akshare_sina", "tushare"}
	assert.Equal(t, want, got)
}

func TestTushareQuotaPremiumUngated(t *testing.T) {
	q := NewTushareQuota()
	q.SetPremium(true)
	for i := 0; i < 10; i++ {
		require.Truef(t, q.Admit(), "premium account should never be gated, call %d denied", i)
		q.RecordCall()
	}
}

func TestTushareQuotaFreeTierHourlyCap(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	q := NewTushareQuota()
	q.clock = func() time.Time { return now }
	q.SetPremium(false)

	require.True(t, q.Admit(), "first call should be admitted")
	q.RecordCall()
	require.True(t, q.Admit(), "second call should be admitted")
	q.RecordCall()
	assert.False(t, q.Admit(), "third call within the hour should be denied")

	now = now.Add(61 * time.Minute)
	assert.True(t, q.Admit(), "call after the window rolls should be admitted again")
}
