package util

import (
	"time"
)

var mockTime int64

func GetTimeSec() int64 {
	if mockTime > 0 {
		return mockTime
	}
	return time.Now().Unix()
}

// SetMockTime pins the wall clock for tests; zero restores it.
func SetMockTime(time int64) {
	mockTime = time
}

func GetAdjustedTimeSec() int64 {
	return GetTimeSec()
}
