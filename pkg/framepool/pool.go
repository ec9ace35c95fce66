// Package framepool provides a growable pool of reusable decode-target
// buffers. A slot is checked out with Acquire, filled through Bytes and
// handed back with Release; the backing array only ever grows.
package framepool

import (
	"context"
	"fmt"
	"sync"
)

// SlotID is an index into the pool's append-only backing array.
type SlotID int

type slot struct {
	Buf    []byte
	IsFree bool
}

// Pool is safe for concurrent use. Release is called from the realtime
// audio path, so the lock is a plain sync.Mutex, held only for the few
// instructions of free-list bookkeeping.
type Pool struct {
	Locker   sync.Mutex
	Slots    []*slot
	FreeList []SlotID
}

func New() *Pool {
	return &Pool{}
}

// Acquire returns a slot ready to be decoded into, reusing a released slot
// when one is available and allocating a new one otherwise.
func (p *Pool) Acquire(ctx context.Context) SlotID {
	p.Locker.Lock()
	defer p.Locker.Unlock()

	if l := len(p.FreeList); l > 0 {
		id := p.FreeList[l-1]
		p.FreeList = p.FreeList[:l-1]
		p.Slots[id].IsFree = false
		return id
	}
	p.Slots = append(p.Slots, &slot{})
	return SlotID(len(p.Slots) - 1)
}

// Release clears the slot's contents and returns it to the free list.
// Releasing a slot twice is a programmer error and panics.
func (p *Pool) Release(ctx context.Context, id SlotID) {
	p.Locker.Lock()
	defer p.Locker.Unlock()

	s := p.slot(id)
	if s.IsFree {
		panic(fmt.Errorf("double release of slot %d", id))
	}
	clear(s.Buf)
	s.IsFree = true
	p.FreeList = append(p.FreeList, id)
}

// Bytes returns the slot's buffer resized to exactly `size` bytes, growing
// the underlying arena when needed. Only the current owner of the slot may
// call it.
func (p *Pool) Bytes(ctx context.Context, id SlotID, size int) []byte {
	p.Locker.Lock()
	defer p.Locker.Unlock()

	s := p.slot(id)
	if s.IsFree {
		panic(fmt.Errorf("requested the buffer of a free slot %d", id))
	}
	if cap(s.Buf) < size {
		s.Buf = make([]byte, size)
	}
	s.Buf = s.Buf[:size]
	return s.Buf
}

func (p *Pool) slot(id SlotID) *slot {
	if id < 0 || int(id) >= len(p.Slots) {
		panic(fmt.Errorf("slot %d does not exist (the pool holds %d slots)", id, len(p.Slots)))
	}
	return p.Slots[id]
}

// NumSlots reports how many slots were ever allocated.
func (p *Pool) NumSlots(ctx context.Context) int {
	p.Locker.Lock()
	defer p.Locker.Unlock()
	return len(p.Slots)
}

// NumFree reports how many slots currently sit in the free list.
func (p *Pool) NumFree(ctx context.Context) int {
	p.Locker.Lock()
	defer p.Locker.Unlock()
	return len(p.FreeList)
}
