package tools

import "time"

func secondsOrDefault(seconds int) time.Duration {
	if seconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(seconds) * time.Second
}
