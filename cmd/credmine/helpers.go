package main

import (
	"strconv"
	"strings"
	"time"
)

func secondsDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// parseSettingValue keeps integers and booleans typed so the settings file
// stays readable; everything else is stored as a string.
func parseSettingValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(trimmed); err == nil && !isNumeric(trimmed) {
		return b
	}
	return trimmed
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
