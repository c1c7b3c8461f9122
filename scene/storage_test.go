package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockStorage(t *testing.T) {
	t.Run("pointers survive growth", func(t *testing.T) {
		var bs blockStorage[int]
		first := bs.Get(bs.Append(7))
		require.NotNil(t, first)

		for i := range 4 * blockSize {
			bs.Append(i)
		}
		*first = 8

		assert.Same(t, first, bs.Get(0))
		assert.Equal(t, 8, *bs.Get(0))
		assert.Equal(t, 4*blockSize+1, bs.Len())
	})

	t.Run("freed slots are reused", func(t *testing.T) {
		var bs blockStorage[string]
		a := bs.Append("a")
		bs.Append("b")
		bs.Delete(a)
		assert.False(t, bs.Has(a))
		assert.Nil(t, bs.Get(a))

		assert.Equal(t, a, bs.Append("c"))
		assert.Equal(t, "c", *bs.Get(a))

		var seen []string
		for _, v := range bs.All() {
			seen = append(seen, *v)
		}
		assert.Equal(t, []string{"c", "b"}, seen)
	})
}
