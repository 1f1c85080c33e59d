package reactor

import "runtime"

// getGoroutineID parses the current goroutine's ID out of runtime.Stack,
// grounded on the teacher's loop.go helper of the same name. Used only to
// detect reentrant Run calls from within the Loop's own goroutine; never
// on any hot path.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
