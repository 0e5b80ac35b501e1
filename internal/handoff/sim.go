package handoff

import "sync"

// SimCPU records hand-offs instead of performing them. Routines placed at an
// address stand in for code living there and run when it is branched to.
type SimCPU struct {
	mu       sync.Mutex
	sp       uint32
	spSet    bool
	branches []uint32
	routines map[uint32]func()
}

// NewSimCPU returns an idle SimCPU.
func NewSimCPU() *SimCPU {
	return &SimCPU{routines: make(map[uint32]func())}
}

// Place registers fn as the code at addr. The Thumb bit is ignored.
func (c *SimCPU) Place(addr uint32, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routines[addr&^ThumbBit] = fn
}

// SetStackPointer records sp.
func (c *SimCPU) SetStackPointer(sp uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sp = sp
	c.spSet = true
}

// Branch records addr and runs the routine placed there, if any.
func (c *SimCPU) Branch(addr uint32) {
	c.mu.Lock()
	c.branches = append(c.branches, addr)
	fn := c.routines[addr&^ThumbBit]
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// StackPointer returns the last stack pointer set, if any.
func (c *SimCPU) StackPointer() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sp, c.spSet
}

// Branches returns every branch target in order.
func (c *SimCPU) Branches() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.branches...)
}
