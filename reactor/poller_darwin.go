//go:build darwin

package reactor

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxFDLimit bounds dynamic growth of the kqueue poller's fd table,
// matching the teacher's poller_darwin.go FastPoller.
const maxFDLimit = 100000000

type fdInfo struct {
	callback IOCallback
	events   IOEvents
	active   bool
}

// kqueuePoller is the Darwin/BSD poller, grounded on the teacher's
// poller_darwin.go FastPoller: kqueue(2), a dynamically grown fd slice
// (kqueue has no natural small upper bound the way epoll's fd table does),
// and the same RWMutex-protected dispatch shape as the Linux poller.
type kqueuePoller struct {
	kq       int32
	eventBuf [256]unix.Kevent_t
	fds      []fdInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

func newPoller() poller { return &kqueuePoller{} }

func (p *kqueuePoller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = int32(kq)
	p.fds = make([]fdInfo, maxFDs)
	return nil
}

// maxFDs is the initial fd slice allocation; it grows on demand up to
// maxFDLimit.
const maxFDs = 65536

func (p *kqueuePoller) Close() error {
	p.closed.Store(true)
	if p.kq > 0 {
		return unix.Close(int(p.kq))
	}
	return nil
}

func (p *kqueuePoller) growLocked(fd int) {
	if fd < len(p.fds) {
		return
	}
	newSize := fd*2 + 1
	if newSize > maxFDLimit {
		newSize = maxFDLimit + 1
	}
	newFds := make([]fdInfo, newSize)
	copy(newFds, p.fds)
	p.fds = newFds
}

func (p *kqueuePoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDLimit {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	p.growLocked(fd)
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = fdInfo{callback: cb, events: events, active: true}
	p.fdMu.Unlock()

	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) > 0 {
		if _, err := unix.Kevent(int(p.kq), kevents, nil, nil); err != nil {
			p.fdMu.Lock()
			p.fds[fd] = fdInfo{}
			p.fdMu.Unlock()
			return err
		}
	}
	return nil
}

func (p *kqueuePoller) UnregisterFD(fd int) error {
	if fd < 0 || fd >= maxFDLimit {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	prev := p.fds[fd]
	p.fds[fd] = fdInfo{}
	p.fdMu.Unlock()

	kevents := eventsToKevents(fd, prev.events, unix.EV_DELETE)
	if len(kevents) > 0 {
		_, _ = unix.Kevent(int(p.kq), kevents, nil, nil)
	}
	return nil
}

func (p *kqueuePoller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 || fd >= maxFDLimit {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	prev := p.fds[fd].events
	p.fds[fd].events = events
	p.fdMu.Unlock()

	if del := eventsToKevents(fd, prev&^events, unix.EV_DELETE); len(del) > 0 {
		_, _ = unix.Kevent(int(p.kq), del, nil, nil)
	}
	if add := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE); len(add) > 0 {
		if _, err := unix.Kevent(int(p.kq), add, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (p *kqueuePoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}

	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		p.fdMu.RLock()
		var info fdInfo
		if fd >= 0 && fd < len(p.fds) {
			info = p.fds[fd]
		}
		p.fdMu.RUnlock()
		if info.active && info.callback != nil {
			info.callback(keventToEvents(&p.eventBuf[i]))
		}
	}
	return n, nil
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if events&EventRead != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}

func keventToEvents(ev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch ev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if ev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	return events
}
