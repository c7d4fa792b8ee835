package sieve

const tombstone = -1

// sparseSet keeps entity handles densely packed. Slots are keyed by raw id
// while dense stores the full handle, so a stale versioned handle fails has
// even though its raw id is present.
type sparseSet struct {
	dense  []EID
	sparse []int
	idMask uint32
}

func newSparseSet(idMask uint32) *sparseSet {
	return &sparseSet{idMask: idMask}
}

func (s *sparseSet) key(eid EID) int {
	return int(uint32(eid) & s.idMask)
}

func (s *sparseSet) slot(eid EID) (int, bool) {
	key := s.key(eid)
	if key >= len(s.sparse) {
		return 0, false
	}
	i := s.sparse[key]
	if i == tombstone {
		return 0, false
	}
	return i, true
}

// has reports whether exactly this handle is present.
func (s *sparseSet) has(eid EID) bool {
	i, ok := s.slot(eid)
	return ok && s.dense[i] == eid
}

// hasKey reports whether any handle with eid's raw id is present.
func (s *sparseSet) hasKey(eid EID) bool {
	_, ok := s.slot(eid)
	return ok
}

// add inserts eid, replacing a handle with the same raw id in place.
func (s *sparseSet) add(eid EID) {
	if i, ok := s.slot(eid); ok {
		s.dense[i] = eid
		return
	}
	key := s.key(eid)
	if key >= len(s.sparse) {
		oldLen := len(s.sparse)
		newLen := max(oldLen*2, key+1, 64)
		grown := make([]int, newLen)
		copy(grown, s.sparse)
		for i := oldLen; i < newLen; i++ {
			grown[i] = tombstone
		}
		s.sparse = grown
	}
	s.sparse[key] = len(s.dense)
	s.dense = append(s.dense, eid)
}

// remove swap-pops the handle stored under eid's raw id.
func (s *sparseSet) remove(eid EID) bool {
	i, ok := s.slot(eid)
	if !ok {
		return false
	}
	last := len(s.dense) - 1
	moved := s.dense[last]
	s.dense[i] = moved
	s.sparse[s.key(moved)] = i
	s.dense = s.dense[:last]
	s.sparse[s.key(eid)] = tombstone
	return true
}

func (s *sparseSet) len() int {
	return len(s.dense)
}

func (s *sparseSet) clear() {
	for _, eid := range s.dense {
		s.sparse[s.key(eid)] = tombstone
	}
	s.dense = s.dense[:0]
}
