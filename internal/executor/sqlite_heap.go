package executor

/*
// Provided by the SQLite amalgamation linked in by github.com/mattn/go-sqlite3.
extern long long sqlite3_hard_heap_limit64(long long);
extern long long sqlite3_soft_heap_limit64(long long);

static long long memoracle_set_heap_limit(long long n) {
	long long prior = sqlite3_hard_heap_limit64(n);
	// A lower hard limit drags the soft limit down with it; re-anchor the soft
	// limit to the new hard limit so raising one raises the other.
	sqlite3_soft_heap_limit64(0);
	return prior;
}
*/
import "C"

import "github.com/roach88/memoracle/internal/oracle"

// heapLimitBytes converts a trial limit to the byte count SQLite expects.
// Unbounded maps to 0, which disables the limit. A zero-megabyte limit maps
// to one byte so that it still caps the heap.
func heapLimitBytes(limit oracle.Megabytes) int64 {
	if limit.IsUnbounded() {
		return 0
	}
	if limit <= 0 {
		return 1
	}
	return int64(limit) << 20
}

// setHardHeapLimit sets SQLite's process-wide hard heap limit and returns the
// previous value. Unlike PRAGMA hard_heap_limit it can raise or clear the
// limit.
func setHardHeapLimit(n int64) int64 {
	return int64(C.memoracle_set_heap_limit(C.longlong(n)))
}

// hardHeapLimit returns the current hard heap limit in bytes, 0 if none.
func hardHeapLimit() int64 {
	return int64(C.sqlite3_hard_heap_limit64(C.longlong(-1)))
}
