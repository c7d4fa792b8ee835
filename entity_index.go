package sieve

import "fmt"

// DefaultVersionBits is the width of the version field when versioning is
// enabled without an explicit width.
const DefaultVersionBits = 8

// EntityIndex allocates entity ids from a sparse-set free list.
// dense[:aliveCount] holds the live handles and dense[aliveCount:] the removed
// ones, most recently removed first in line for reuse.
//
// With versioning, a recycled slot is rewritten with its version incremented,
// so a handle captured before removal no longer matches the slot.
type EntityIndex struct {
	dense      []EID
	sparse     []int
	aliveCount int
	maxID      uint32

	versioning   bool
	versionBits  uint
	idMask       uint32
	versionShift uint
	versionMask  uint32
}

func newEntityIndex(versioning bool, versionBits uint) *EntityIndex {
	idx := &EntityIndex{
		versioning: versioning,
		idMask:     ^uint32(0),
	}
	if versioning {
		if versionBits == 0 {
			versionBits = DefaultVersionBits
		}
		versionBits = min(versionBits, 16)
		idx.versionBits = versionBits
		idx.versionShift = 32 - versionBits
		idx.idMask = (uint32(1) << idx.versionShift) - 1
		idx.versionMask = ((uint32(1) << versionBits) - 1) << idx.versionShift
	}
	return idx
}

// ID strips the version from a handle.
func (x *EntityIndex) ID(eid EID) uint32 {
	return uint32(eid) & x.idMask
}

// Version returns the version field of a handle, always 0 without versioning.
func (x *EntityIndex) Version(eid EID) uint32 {
	if !x.versioning {
		return 0
	}
	return (uint32(eid) & x.versionMask) >> x.versionShift
}

func (x *EntityIndex) nextVersion(eid EID) EID {
	version := (x.Version(eid) + 1) & ((uint32(1) << x.versionBits) - 1)
	return EID(x.ID(eid) | version<<x.versionShift)
}

// Add returns the most recently recycled handle, or mints a new id.
func (x *EntityIndex) Add() EID {
	if x.aliveCount < len(x.dense) {
		eid := x.dense[x.aliveCount]
		x.sparse[x.ID(eid)] = x.aliveCount
		x.aliveCount++
		return eid
	}
	if x.maxID == x.idMask {
		panic(fmt.Sprintf("sieve: entity id space exhausted (%d ids)", x.idMask))
	}
	x.maxID++
	eid := EID(x.maxID)
	x.dense = append(x.dense, eid)
	if int(x.maxID) >= len(x.sparse) {
		x.sparse = extendSlice(x.sparse, int(x.maxID)+1-len(x.sparse))
	}
	x.sparse[x.maxID] = x.aliveCount
	x.aliveCount++
	return eid
}

// Remove retires a live handle. Dead or stale handles are ignored.
func (x *EntityIndex) Remove(eid EID) {
	if !x.IsAlive(eid) {
		return
	}
	raw := x.ID(eid)
	i := x.sparse[raw]
	last := x.aliveCount - 1
	lastEID := x.dense[last]

	x.sparse[x.ID(lastEID)] = i
	x.dense[i] = lastEID
	x.sparse[raw] = last
	x.dense[last] = eid
	if x.versioning {
		x.dense[last] = x.nextVersion(eid)
	}
	x.aliveCount--
}

// IsAlive compares the exact handle stored in the dense slot, version included.
func (x *EntityIndex) IsAlive(eid EID) bool {
	raw := x.ID(eid)
	if raw == 0 || int(raw) >= len(x.sparse) {
		return false
	}
	i := x.sparse[raw]
	return i < x.aliveCount && x.dense[i] == eid
}

func (x *EntityIndex) AliveCount() int {
	return x.aliveCount
}

// Alive returns the live handles. The slice is owned by the index and is only
// valid until the next Add or Remove.
func (x *EntityIndex) Alive() []EID {
	return x.dense[:x.aliveCount]
}

func (x *EntityIndex) MaxID() uint32 {
	return x.maxID
}

func (x *EntityIndex) Versioning() bool {
	return x.versioning
}

func (x *EntityIndex) Reset() {
	x.dense = x.dense[:0]
	x.sparse = x.sparse[:0]
	x.aliveCount = 0
	x.maxID = 0
}
