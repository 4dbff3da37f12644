package util

import "time"

// UnixSeconds converts t to fractional seconds since the unix epoch
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
