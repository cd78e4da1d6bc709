package upbeat

import "fmt"

type BitSet struct {
	size uint32
	data []uint64
}

type BitIndex uint32

//bitsets have to be multiples of 64.
func NewBitSet(size uint32) (*BitSet, error) {
	mask := ^(uint32(0x3f))
	if size&mask != size || size == 0 {
		return nil, fmt.Errorf("bitset size is not a multiple of 64: %d", size)
	}
	return &BitSet{
		data: make([]uint64, size>>6),
		size: size,
	}, nil
}

func (b *BitSet) Size() uint32 {
	return b.size
}

func (b *BitSet) On(bit BitIndex) bool {
	mask := uint64(1) << (bit % 64) //which bit in the right word
	return b.data[bit>>6]&mask != 0
}

func (b *BitSet) Set(bit BitIndex) {
	b.data[bit>>6] |= uint64(1) << (bit % 64)
}

func (b *BitSet) Clear(bit BitIndex) {
	b.data[bit>>6] &^= uint64(1) << (bit % 64)
}

// Count is the number of bits that are on.
func (b *BitSet) Count() int {
	n := 0
	for _, w := range b.data {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}

// FindClearRun returns the first index of n consecutive clear bits.
func (b *BitSet) FindClearRun(n uint32) (BitIndex, bool) {
	if n == 0 || n > b.size {
		return 0, false
	}
	run := uint32(0)
	for i := uint32(0); i < b.size; i++ {
		if b.On(BitIndex(i)) {
			run = 0
			continue
		}
		run++
		if run == n {
			return BitIndex(i + 1 - n), true
		}
	}
	return 0, false
}
