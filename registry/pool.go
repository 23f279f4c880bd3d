package registry

// Handle identifies a slot in a Pool.
// The zero value is InvalidHandle.
type Handle uint32

// InvalidHandle is the reserved "unset" handle. Allocate never returns it.
const InvalidHandle Handle = 0

// IsValid reports whether h is not InvalidHandle.
func (h Handle) IsValid() bool {
	return h != InvalidHandle
}

type slot[T any] struct {
	value T
	used  bool
}

// Pool stores values in slots addressed by Handle.
//
// Allocation pops the free list first (LIFO) and only then appends a new
// slot. Release zeroes the slot and pushes the handle back. Releasing an
// empty or unknown handle is a no-op.
type Pool[T any] struct {
	// slots[0] is the reserved InvalidHandle slot and is never used.
	slots []slot[T]
	free  []Handle
	count int
}

// NewPool creates an empty pool with room for capacity values.
func NewPool[T any](capacity int) *Pool[T] {
	p := &Pool[T]{}
	p.init(capacity)
	return p
}

func (p *Pool[T]) init(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	p.slots = make([]slot[T], 1, capacity+1)
	p.free = p.free[:0]
	p.count = 0
}

// Allocate stores v and returns its handle. It never fails.
func (p *Pool[T]) Allocate(v T) Handle {
	if p.slots == nil {
		p.init(0)
	}
	p.count++
	if n := len(p.free); n > 0 {
		h := p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[h] = slot[T]{value: v, used: true}
		return h
	}
	p.slots = append(p.slots, slot[T]{value: v, used: true})
	// #nosec G115 -- slot count is bounded by available memory, well under uint32 max
	return Handle(uint32(len(p.slots) - 1))
}

// Release empties the slot for h and makes h available for reuse.
// It returns false, and changes nothing, when h is not live.
func (p *Pool[T]) Release(h Handle) bool {
	if !p.isLive(h) {
		return false
	}
	p.slots[h] = slot[T]{}
	p.free = append(p.free, h)
	p.count--
	return true
}

// Get returns the value stored at h.
func (p *Pool[T]) Get(h Handle) (T, bool) {
	if !p.isLive(h) {
		var zero T
		return zero, false
	}
	return p.slots[h].value, true
}

// Set replaces the value at a live handle. It returns false if h is not live.
func (p *Pool[T]) Set(h Handle, v T) bool {
	if !p.isLive(h) {
		return false
	}
	p.slots[h].value = v
	return true
}

// Contains reports whether h is live.
func (p *Pool[T]) Contains(h Handle) bool {
	return p.isLive(h)
}

// Len returns the number of live values.
func (p *Pool[T]) Len() int {
	return p.count
}

// Cap returns the high-water mark: the number of slots ever created,
// excluding the reserved slot.
func (p *Pool[T]) Cap() int {
	if len(p.slots) == 0 {
		return 0
	}
	return len(p.slots) - 1
}

// FreeCount returns the number of released slots waiting for reuse.
func (p *Pool[T]) FreeCount() int {
	return len(p.free)
}

// Each calls fn for every live value in handle order.
func (p *Pool[T]) Each(fn func(Handle, T)) {
	for i := 1; i < len(p.slots); i++ {
		if p.slots[i].used {
			// #nosec G115 -- bounded by slot count
			fn(Handle(uint32(i)), p.slots[i].value)
		}
	}
}

// Reset drops every value and the free list.
func (p *Pool[T]) Reset() {
	p.init(0)
}

func (p *Pool[T]) isLive(h Handle) bool {
	return h != InvalidHandle && int(h) < len(p.slots) && p.slots[h].used
}
