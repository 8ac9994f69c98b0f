package permission

// Mask128 covers up to 127 resources plus the root bit.
type Mask128 struct {
	A uint64
	B uint64
}

// Has reports whether bit is set or the root bit (highest bit of B) is set.
func (m *Mask128) Has(bit int) bool {
	if bit < 0 || bit >= 128 {
		return false
	}
	if m.B&(1<<63) != 0 {
		return true
	}
	if bit < 64 {
		return m.A&(1<<bit) != 0
	}
	return m.B&(1<<(bit-64)) != 0
}

// Set sets bit in the mask.
func (m *Mask128) Set(bit int) {
	if bit < 0 || bit >= 128 {
		return
	}
	if bit < 64 {
		m.A |= 1 << bit
	} else {
		m.B |= 1 << (bit - 64)
	}
}

// Union ORs other into m. Masks of a different width are ignored.
func (m *Mask128) Union(other Mask) {
	if o, ok := other.(*Mask128); ok && o != nil {
		m.A |= o.A
		m.B |= o.B
	}
}

// Empty reports whether no bit is set.
func (m *Mask128) Empty() bool {
	return m.A == 0 && m.B == 0
}
