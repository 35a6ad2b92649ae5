package events

import (
	"strconv"
	"time"
)

func uintToString(v uint64) string { return strconv.FormatUint(v, 10) }

func intToString(v int64) string { return strconv.FormatInt(v, 10) }

func timeToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}
