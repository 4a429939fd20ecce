package helper

import (
	"fmt"
	"time"
)

// GetTimestamp get current timestamp in seconds
func GetTimestamp() int64 {
	return time.Now().Unix()
}

// Now is the clock used for persistence timestamps, replaceable in tests.
var Now = time.Now

func GetTimeString() string {
	now := time.Now()
	return fmt.Sprintf("%s%d", now.Format("20060102150405"), now.UnixNano()%1e9)
}

// ISO8601Timestamp formats t as the UTC ISO8601 string used for the usage
// table's sort key. Precision is milliseconds so records from one burst still
// order correctly.
func ISO8601Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// MonthString formats t as "YYYY-MM" in UTC, the month-to-date bucket of the
// budget counters.
func MonthString(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// CalcElapsedTime return the elapsed time in milliseconds (ms)
func CalcElapsedTime(start time.Time) int64 {
	elapsed := time.Since(start)
	ms := elapsed.Milliseconds()
	if ms == 0 && elapsed > 0 {
		// Ensure non-zero latency for sub-millisecond requests so usage rows do not show 0
		return 1
	}
	return ms
}
