//go:build linux

package reactor

import "golang.org/x/sys/unix"

// createWakeFd creates an eventfd for cross-goroutine wake-up notification,
// grounded on the teacher's wakeup_linux.go. A single eventfd serves as
// both read and write end.
func createWakeFd() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

func drainWakeFd(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			break
		}
	}
}

func signalWakeFd(fd int) error {
	buf := [8]byte{1}
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		// Counter already non-zero: a wake-up is already pending.
		return nil
	}
	return err
}
