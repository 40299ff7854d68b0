// Package domain provides the core data model shared by every collection
// in the document store: instrument identity, market snapshots, financial
// statements, analysis jobs and their reports, sync status, notifications
// and per-market data source priority overrides.
package domain

import "strings"

// NormalizeCode extracts the 6-digit A-share instrument code from any of
// the shapes providers hand back: "sz000001", "000001", "1", "SZ.000001",
// "000001.SZ". Non-digit characters are stripped and the remainder is
// zero-padded to 6 digits. Normalizing an already-normalized code is a
// no-op: NormalizeCode(NormalizeCode(x)) == NormalizeCode(x).
func NormalizeCode(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	code := digits.String()
	if code == "" {
		return ""
	}
	if len(code) > 6 {
		// Prefer the first 6 digits seen (covers "000001.SZ" style suffixes
		// where extra digits trail the code) unless the raw string carries
		// an explicit suffix annotation, in which case the code precedes it.
		if idx := strings.IndexAny(raw, "."); idx > 0 {
			prefixDigits := strings.TrimFunc(raw[:idx], func(r rune) bool { return r < '0' || r > '9' })
			if len(prefixDigits) > 0 && len(prefixDigits) <= 6 {
				code = prefixDigits
			} else {
				code = code[:6]
			}
		} else {
			code = code[:6]
		}
	}
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}

// FullSymbol derives the Yahoo-style suffixed symbol from a normalized
// 6-digit code. Rewriting this rule is a breaking change: 60/68/90 -> .SS,
// 00/30/20 -> .SZ, 8/4 -> .BJ.
func FullSymbol(code string) string {
	code = NormalizeCode(code)
	if code == "" {
		return ""
	}
	switch {
	case hasPrefix(code, "60", "68", "90"):
		return code + ".SS"
	case hasPrefix(code, "00", "30", "20"):
		return code + ".SZ"
	case hasPrefix(code, "8", "4"):
		return code + ".BJ"
	default:
		return code + ".SZ"
	}
}

func hasPrefix(code string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// TushareCode extracts the 6-digit code and exchange suffix from a Tushare
// ts_code such as "000001.SZ". The suffix is authoritative for exchange
// assignment when present; the code prefix is authoritative when absent.
func TushareCode(tsCode string) (code string, suffix string) {
	parts := strings.SplitN(tsCode, ".", 2)
	code = NormalizeCode(parts[0])
	if len(parts) == 2 {
		suffix = strings.ToUpper(parts[1])
	}
	return code, suffix
}
