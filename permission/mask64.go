package permission

// Mask is a fixed-width resource bitmask. The highest bit of every width is
// the root bit: a mask carrying it grants every resource.
type Mask interface {
	Has(bit int) bool
	Set(bit int)
	Union(other Mask)
	Empty() bool
}

func newMask(maxBits int) Mask {
	if maxBits == 128 {
		return &Mask128{}
	}
	m := Mask64(0)
	return &m
}

// Mask64 covers up to 63 resources plus the root bit.
type Mask64 uint64

const rootBit64 = 63

func (m *Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	if *m&(1<<rootBit64) != 0 {
		return true
	}
	return *m&(1<<bit) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << bit
}

func (m *Mask64) Union(other Mask) {
	if o, ok := other.(*Mask64); ok && o != nil {
		*m |= *o
	}
}

func (m *Mask64) Empty() bool {
	return *m == 0
}
