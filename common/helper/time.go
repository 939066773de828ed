package helper

import (
	"time"
)

// GetTimestamp get current timestamp in seconds
func GetTimestamp() int64 {
	return time.Now().Unix()
}

// CalcElapsedTime return the elapsed time in milliseconds (ms)
func CalcElapsedTime(start time.Time) int64 {
	elapsed := time.Since(start)
	ms := elapsed.Milliseconds()
	if ms == 0 && elapsed > 0 {
		// Sub-millisecond responses still report non-zero latency.
		return 1
	}
	return ms
}
