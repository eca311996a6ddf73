package observability

import "unicode"

// logSafe strips control characters and bounds length so attacker-controlled
// input cannot forge or flood log lines.
func logSafe(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	out := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return string(out)
}

func safeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return logSafe(route, 180)
}
