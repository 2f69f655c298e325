package slab

// NoIndex is the sentinel for "no slot" — spec.md's u32::MAX.
const NoIndex uint32 = 1<<32 - 1

// PoolItem is implemented (with a pointer receiver) by every record type
// that lives in a fixed-capacity Pool: Order, Position, Reservation, Slice,
// AggressorEntry. It threads a singly-linked freelist through the record
// itself (spec.md §4.1), so the pool never allocates beyond its initial
// backing array.
type PoolItem interface {
	SetNextFree(next uint32)
	NextFree() uint32
	SetUsed(used bool)
	IsUsed() bool
}

// Pool is a fixed-capacity slot array with O(1) LIFO alloc/free, mirroring
// the Rust `Pool<T, const N: usize>` in the original source. PT is the
// pointer-method-set trick that lets a generic Pool call PoolItem methods
// on *T without T itself needing to be an interface.
type Pool[T any, PT interface {
	*T
	PoolItem
}] struct {
	items     []T
	freeHead  uint32
	usedCount uint32
	capacity  uint32
}

// NewPool allocates the backing array once, up front, and threads the
// initial freelist (slot i -> i+1, per spec.md §4.1).
func NewPool[T any, PT interface {
	*T
	PoolItem
}](capacity uint32) *Pool[T, PT] {
	items := make([]T, capacity)
	for i := range items {
		pt := PT(&items[i])
		pt.SetNextFree(uint32(i) + 1)
		pt.SetUsed(false)
	}
	return &Pool[T, PT]{items: items, freeHead: 0, capacity: capacity}
}

// Alloc returns the most recently freed slot (LIFO), or false if full.
func (p *Pool[T, PT]) Alloc() (uint32, bool) {
	if p.usedCount >= p.capacity {
		return 0, false
	}
	idx := p.freeHead
	if idx >= p.capacity {
		return 0, false
	}
	pt := PT(&p.items[idx])
	p.freeHead = pt.NextFree()
	p.usedCount++
	pt.SetUsed(true)
	return idx, true
}

// Free pushes idx back onto the freelist head. Idempotent: freeing an
// already-free or out-of-range slot is a no-op (spec.md §4.5/§4.1).
func (p *Pool[T, PT]) Free(idx uint32) {
	if idx >= p.capacity {
		return
	}
	pt := PT(&p.items[idx])
	if !pt.IsUsed() {
		return
	}
	pt.SetUsed(false)
	pt.SetNextFree(p.freeHead)
	p.freeHead = idx
	if p.usedCount > 0 {
		p.usedCount--
	}
}

// Get returns a pointer to the record at idx, or false if the slot is
// unused or out of range.
func (p *Pool[T, PT]) Get(idx uint32) (*T, bool) {
	if idx >= p.capacity {
		return nil, false
	}
	pt := PT(&p.items[idx])
	if !pt.IsUsed() {
		return nil, false
	}
	return &p.items[idx], true
}

// Used returns the number of currently-allocated slots.
func (p *Pool[T, PT]) Used() uint32 { return p.usedCount }

// IsFull reports whether the pool has no free slots.
func (p *Pool[T, PT]) IsFull() bool { return p.usedCount >= p.capacity }

// Capacity returns the pool's fixed slot count.
func (p *Pool[T, PT]) Capacity() uint32 { return p.capacity }

// Each calls fn(idx, item) for every currently-used slot, in index order.
// Used for the bounded linear scans spec.md calls for (hold_id lookup,
// pool-wide invariant checks).
func (p *Pool[T, PT]) Each(fn func(idx uint32, item *T)) {
	for i := uint32(0); i < p.capacity; i++ {
		pt := PT(&p.items[i])
		if pt.IsUsed() {
			fn(i, &p.items[i])
		}
	}
}
