package errcode

import "fmt"

type DiskErr int

const (
	ErrorMapFileFailed DiskErr = DiskErrorBase + iota
	ErrorResizeFileFailed
	ErrorSyncFileFailed
	ErrorDirectoryLocked
	ErrorBadBucketCount
	ErrorAllocatorExhausted
)

var DiskErrString = map[DiskErr]string{
	ErrorMapFileFailed:      "memory mapping failed",
	ErrorResizeFileFailed:   "file resize failed",
	ErrorSyncFileFailed:     "file sync failed",
	ErrorDirectoryLocked:    "database directory is locked by another process",
	ErrorBadBucketCount:     "stored bucket count does not match",
	ErrorAllocatorExhausted: "record allocator exhausted",
}

func (de DiskErr) String() string {
	if s, ok := DiskErrString[de]; ok {
		return s
	}
	return fmt.Sprintf("Unknown code (%d)", de)
}
