package channel

import (
	"fmt"

	"github.com/joeycumines/go-netreactor/buffer"
	"github.com/joeycumines/go-netreactor/future"
	"github.com/joeycumines/go-netreactor/nerr"
)

// outboundEntry is one pending write: bytes not yet fully accepted by the
// kernel, the promise completed once they are (or failed on close/error),
// and — if the message arrived as a reference-counted buffer — the buffer
// to release once the entry is fully drained.
type outboundEntry struct {
	data    []byte
	written int
	promise future.Promise[struct{}]
	owned   *buffer.ByteBuf
}

func (e *outboundEntry) remaining() []byte { return e.data[e.written:] }
func (e *outboundEntry) done() bool         { return e.written >= len(e.data) }

// writeBuffer is the per-channel outbound queue, per spec.md §3/§4.E: an
// ordered sequence of (message, promise) entries, a flush boundary marking
// the flushable prefix, and pending-byte accounting that drives the
// isWritable watermark transitions.
type writeBuffer struct {
	entries      []*outboundEntry
	flushable    int // number of leading entries eligible to be written
	pendingBytes int

	highWaterMark int
	lowWaterMark  int
	writable      bool
	transitioned  bool
}

func newWriteBuffer(highWaterMark, lowWaterMark int) *writeBuffer {
	return &writeBuffer{
		highWaterMark: highWaterMark,
		lowWaterMark:  lowWaterMark,
		writable:      true,
	}
}

// addMessage appends msg to the queue, converting it to a byte slice. A
// *buffer.ByteBuf is read from and retained ownership of (released once
// fully written); a []byte is referenced by the entry without copying, so
// the caller must not modify it until the write completes. Any other type fails the promise and returns an
// error without enqueuing.
func (w *writeBuffer) addMessage(msg any, promise future.Promise[struct{}]) error {
	var data []byte
	var owned *buffer.ByteBuf
	switch v := msg.(type) {
	case []byte:
		data = v
	case *buffer.ByteBuf:
		data = v.Bytes()
		owned = v
	default:
		err := nerr.New(nerr.KindEncoderException, fmt.Sprintf("write buffer: unsupported message type %T; add an encoder handler", msg))
		if promise != nil {
			promise.TryFailure(err)
		}
		return err
	}
	w.entries = append(w.entries, &outboundEntry{data: data, promise: promise, owned: owned})
	w.pendingBytes += len(data)
	w.updateWritability()
	return nil
}

// addFlush marks every currently-queued entry as flushable.
func (w *writeBuffer) addFlush() { w.flushable = len(w.entries) }

// hasFlushable reports whether any entry is eligible to be written.
func (w *writeBuffer) hasFlushable() bool { return w.flushable > 0 }

// isEmpty reports whether the queue holds no entries at all.
func (w *writeBuffer) isEmpty() bool { return len(w.entries) == 0 }

// drainTo writes as many flushable bytes as write accepts (write returns
// the number of bytes it consumed and an error, mirroring a non-blocking
// socket write). Fully-written entries are completed and removed; a
// partially-written entry stays at the head for the next call. Returns
// true if every flushable entry was fully drained (the caller can then
// clear OP_WRITE interest).
func (w *writeBuffer) drainTo(write func([]byte) (int, error)) (drained bool, err error) {
	for w.flushable > 0 {
		e := w.entries[0]
		n, werr := write(e.remaining())
		if n > 0 {
			e.written += n
			w.pendingBytes -= n
			w.updateWritability()
		}
		if werr != nil {
			return false, werr
		}
		if !e.done() {
			return false, nil // kernel buffer full; OP_WRITE stays armed
		}
		w.popHead()
	}
	return w.flushable == 0, nil
}

func (w *writeBuffer) popHead() {
	e := w.entries[0]
	w.entries = w.entries[1:]
	w.flushable--
	if e.promise != nil {
		e.promise.TrySuccess(struct{}{})
	}
	if e.owned != nil {
		_, _ = e.owned.Release()
	}
}

// failAll fails every pending entry's promise with cause (spec.md §4.E's
// close-drains-outbound-buffer step) and releases any owned buffers,
// without writing anything.
func (w *writeBuffer) failAll(cause error) {
	for _, e := range w.entries {
		if e.promise != nil {
			e.promise.TryFailure(cause)
		}
		if e.owned != nil {
			_, _ = e.owned.Release()
		}
	}
	w.entries = nil
	w.flushable = 0
	w.pendingBytes = 0
	w.updateWritability()
}

// IsWritable reports the current high/low-watermark-gated writability.
func (w *writeBuffer) IsWritable() bool { return w.writable }

// ConsumeTransition reports whether writability changed since the last
// call to ConsumeTransition, clearing the flag. The channel polls this
// after every operation that can move pendingBytes to decide whether to
// fire channelWritabilityChanged.
func (w *writeBuffer) ConsumeTransition() bool {
	t := w.transitioned
	w.transitioned = false
	return t
}

// updateWritability recomputes writable from pendingBytes against the
// watermarks and latches transitioned if it changed.
func (w *writeBuffer) updateWritability() {
	prev := w.writable
	switch {
	case w.writable && w.pendingBytes > w.highWaterMark:
		w.writable = false
	case !w.writable && w.pendingBytes <= w.lowWaterMark:
		w.writable = true
	}
	if w.writable != prev {
		w.transitioned = true
	}
}
