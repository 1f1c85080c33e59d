//go:build darwin

package reactor

import "golang.org/x/sys/unix"

// createWakeFd creates a self-pipe for wake-up notification, grounded on
// the teacher's wakeup_darwin.go: Darwin has no eventfd equivalent, so a
// non-blocking pipe stands in, with the poller watching the read end for
// EventRead.
func createWakeFd() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func drainWakeFd(fd int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			break
		}
	}
}

func signalWakeFd(fd int) error {
	buf := [1]byte{1}
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}
