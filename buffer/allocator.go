package buffer

import "sync"

// Allocator creates ByteBufs, per spec.md §4.E's ByteBufAllocator. A
// pooled Allocator recycles released buffers' backing storage; an
// unpooled one always allocates fresh, useful for tests that want
// deterministic GC behavior.
type Allocator interface {
	// Buffer allocates a new ByteBuf with the given initial capacity.
	// maxCapacity bounds how large WriteBytes is allowed to grow it; zero
	// means unbounded.
	Buffer(initialCapacity, maxCapacity int) (*ByteBuf, error)
}

// pool recycles byte slices by capacity class, grounded on the teacher's
// ingress.go chunkPool (sync.Pool of fixed-size buffers, cleared before
// reuse to avoid retaining stale references).
type pool struct {
	classes sync.Map // capacity class (int) -> *sync.Pool
}

// capacityClasses are the pooled size tiers; a request is rounded up to
// the smallest class that fits, mirroring common slab-allocator designs.
var capacityClasses = []int{256, 1024, 4096, 16384, 65536}

func classFor(n int) int {
	for _, c := range capacityClasses {
		if n <= c {
			return c
		}
	}
	return 0 // too large to pool; caller allocates directly
}

func (p *pool) get(n int) []byte {
	class := classFor(n)
	if class == 0 {
		return make([]byte, n)
	}
	v, _ := p.classes.LoadOrStore(class, &sync.Pool{
		New: func() any {
			buf := make([]byte, class)
			return &buf
		},
	})
	sp := v.(*sync.Pool)
	bufPtr := sp.Get().(*[]byte)
	buf := (*bufPtr)[:0]
	buf = buf[:cap(buf)]
	return buf
}

func (p *pool) put(buf []byte) {
	class := classFor(cap(buf))
	if class == 0 || cap(buf) != class {
		return // non-pooled size, let the GC reclaim it
	}
	v, ok := p.classes.Load(class)
	if !ok {
		return
	}
	for i := range buf {
		buf[i] = 0
	}
	sp := v.(*sync.Pool)
	sp.Put(&buf)
}

// pooledAllocator is the default Allocator, recycling storage via pool.
type pooledAllocator struct {
	p pool
}

// NewPooledAllocator returns an Allocator that recycles released buffers'
// backing storage by capacity class.
func NewPooledAllocator() Allocator {
	return &pooledAllocator{}
}

func (a *pooledAllocator) Buffer(initialCapacity, maxCapacity int) (*ByteBuf, error) {
	if maxCapacity > 0 && initialCapacity > maxCapacity {
		return nil, ErrBufferTooLarge
	}
	buf := a.p.get(initialCapacity)
	return newByteBuf(buf, maxCapacity, &a.p), nil
}

// unpooledAllocator always allocates fresh storage, for tests and for
// callers that want deterministic per-buffer GC behavior over pooling.
type unpooledAllocator struct{}

// NewUnpooledAllocator returns an Allocator that never recycles storage.
func NewUnpooledAllocator() Allocator { return unpooledAllocator{} }

func (unpooledAllocator) Buffer(initialCapacity, maxCapacity int) (*ByteBuf, error) {
	if maxCapacity > 0 && initialCapacity > maxCapacity {
		return nil, ErrBufferTooLarge
	}
	return newByteBuf(make([]byte, initialCapacity), maxCapacity, nil), nil
}
