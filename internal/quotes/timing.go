// Package quotes runs the near-realtime quote rotation pipeline: a
// ticker-driven loop that rotates across [tushare, akshare_eastmoney,
// akshare_sina] every tick, gates Tushare calls behind a free-tier quota,
// and falls back to historical-bar/last-snapshot backfill outside trading
// hours. Grounded on the teacher's internal/work.MarketTimingChecker
// (CanExecute gating) and internal/queue.Scheduler (ticker-loop shape),
// generalized from per-security market hours to the single CN A-share
// trading-session predicate.
package quotes

import "time"

// IsTradingTime reports whether now falls inside an A-share trading
// session: weekday, 09:30-11:30 or 13:00-15:30. The 15:00-15:30 tail is a
// deliberate buffer so post-close rounds can still catch the final print.
func IsTradingTime(now time.Time) bool {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	morning := clockMinutes(9, 30)
	noon := clockMinutes(11, 30)
	afternoonStart := clockMinutes(13, 0)
	bufferEnd := clockMinutes(15, 30)

	t := clockMinutes(now.Hour(), now.Minute())
	return (t >= morning && t <= noon) || (t >= afternoonStart && t <= bufferEnd)
}

func clockMinutes(hour, minute int) int {
	return hour*60 + minute
}
