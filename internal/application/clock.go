package application

import "time"

// NowTimeFunc is the clock used by the services; tests replace it
var NowTimeFunc = time.Now

func now() time.Time {
	return NowTimeFunc().UTC()
}

// maskSecret keeps enough of a key or ticket to correlate log lines
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:8] + "****"
}
