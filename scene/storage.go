package scene

import "iter"

const blockSize = 64

// blockStorage stores values of type T in fixed-size blocks. Each block is
// allocated once, so growth never moves existing values. Freed slots are
// reused before new ones are added.
type blockStorage[T any] struct {
	blocks    []*[blockSize]T
	filled    [][blockSize]bool
	freeSlots []int
	nextIndex int
	count     int
}

// Append stores item and returns its index.
func (bs *blockStorage[T]) Append(item T) int {
	var index int
	if n := len(bs.freeSlots); n > 0 {
		index = bs.freeSlots[n-1]
		bs.freeSlots = bs.freeSlots[:n-1]
	} else {
		index = bs.nextIndex
		bs.nextIndex++
		if index/blockSize >= len(bs.blocks) {
			bs.blocks = append(bs.blocks, new([blockSize]T))
			bs.filled = append(bs.filled, [blockSize]bool{})
		}
	}

	blockIdx, slotIdx := index/blockSize, index%blockSize
	bs.blocks[blockIdx][slotIdx] = item
	bs.filled[blockIdx][slotIdx] = true
	bs.count++
	return index
}

// Get returns a pointer to the value at index, or nil if the slot is empty.
// The pointer stays valid until the slot is deleted.
func (bs *blockStorage[T]) Get(index int) *T {
	if !bs.Has(index) {
		return nil
	}
	return &bs.blocks[index/blockSize][index%blockSize]
}

// Delete empties the slot at index.
func (bs *blockStorage[T]) Delete(index int) {
	if !bs.Has(index) {
		return
	}
	blockIdx, slotIdx := index/blockSize, index%blockSize
	var zero T
	bs.blocks[blockIdx][slotIdx] = zero
	bs.filled[blockIdx][slotIdx] = false
	bs.freeSlots = append(bs.freeSlots, index)
	bs.count--
}

// Has reports whether index holds a value.
func (bs *blockStorage[T]) Has(index int) bool {
	if index < 0 || index >= bs.nextIndex {
		return false
	}
	return bs.filled[index/blockSize][index%blockSize]
}

// Len returns the number of stored values.
func (bs *blockStorage[T]) Len() int {
	return bs.count
}

// All yields every occupied index with its value in index order.
func (bs *blockStorage[T]) All() iter.Seq2[int, *T] {
	return func(yield func(int, *T) bool) {
		for i := 0; i < bs.nextIndex; i++ {
			blockIdx, slotIdx := i/blockSize, i%blockSize
			if !bs.filled[blockIdx][slotIdx] {
				continue
			}
			if !yield(i, &bs.blocks[blockIdx][slotIdx]) {
				return
			}
		}
	}
}
