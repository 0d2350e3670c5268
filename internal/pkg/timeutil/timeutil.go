package timeutil

import "time"

// NowUnix returns the current time in unix milliseconds.
func NowUnix() int64 {
	return time.Now().UnixMilli()
}

func DaysAgoUnix(days int) int64 {
	return time.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
}
