package kizuna

import "math/bits"

// bitmask256 records which of up to 256 shared component IDs an entity
// currently holds. Bit n is set while the entity owns a handle for component
// ID n.
type bitmask256 [4]uint64

// set enables the bit for the given component ID.
//
// Parameters:
//   - bit: The component ID, from 0 to 255.
func (m *bitmask256) set(bit uint8) {
	m[bit>>6] |= uint64(1) << (bit & 63)
}

// unset disables the bit for the given component ID.
func (m *bitmask256) unset(bit uint8) {
	m[bit>>6] &^= uint64(1) << (bit & 63)
}

// containsBit checks if a specific bit is set in the mask.
func (m bitmask256) containsBit(bit uint8) bool {
	return m[bit>>6]&(uint64(1)<<(bit&63)) != 0
}

// count returns the number of set bits.
func (m bitmask256) count() int {
	return bits.OnesCount64(m[0]) + bits.OnesCount64(m[1]) +
		bits.OnesCount64(m[2]) + bits.OnesCount64(m[3])
}

// isZero reports whether no bit is set.
func (m bitmask256) isZero() bool {
	return m[0]|m[1]|m[2]|m[3] == 0
}
