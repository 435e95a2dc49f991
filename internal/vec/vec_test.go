package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkPosOf(t *testing.T) {
	cases := []struct {
		x, z float64
		want ChunkPos
	}{
		{0, 0, ChunkPos{0, 0}},
		{15.99, 0, ChunkPos{0, 0}},
		{16, 0, ChunkPos{1, 0}},
		{-0.5, 0, ChunkPos{-1, 0}},
		{-16, -16.01, ChunkPos{-1, -2}},
		{40, -1, ChunkPos{2, -1}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ChunkPosOf(c.x, c.z, 16), "x=%v z=%v", c.x, c.z)
	}
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 0, FloorDiv(15, 16))
	assert.Equal(t, 1, FloorDiv(16, 16))
	assert.Equal(t, -1, FloorDiv(-1, 16))
	assert.Equal(t, -1, FloorDiv(-16, 16))
	assert.Equal(t, -2, FloorDiv(-17, 16))
}

func TestChebyshev(t *testing.T) {
	a := ChunkPos{X: 1, Z: -2}
	assert.Equal(t, 0, a.Chebyshev(a))
	assert.Equal(t, 3, a.Chebyshev(ChunkPos{X: -2, Z: 0}))
	assert.Equal(t, 4, a.Chebyshev(ChunkPos{X: 2, Z: 2}))
}

func TestSquare(t *testing.T) {
	sq := Square(ChunkPos{}, 2)
	assert.Len(t, sq, 25)
	for _, p := range sq {
		assert.LessOrEqual(t, p.Chebyshev(ChunkPos{}), 2)
	}
	// построчно: X, затем Z
	assert.Equal(t, ChunkPos{X: -2, Z: -2}, sq[0])
	assert.Equal(t, ChunkPos{X: -2, Z: -1}, sq[1])
	assert.Equal(t, ChunkPos{X: 2, Z: 2}, sq[24])
	assert.Len(t, Square(ChunkPos{X: 5, Z: 5}, 0), 1)
	assert.Nil(t, Square(ChunkPos{}, -1))
}

func TestVec3Local(t *testing.T) {
	v := Vec3{X: -1, Y: 0, Z: 17}
	assert.Equal(t, ChunkPos{X: -1, Z: 1}, v.Chunk(16))
	lx, lz := v.Local(16)
	assert.Equal(t, 15, lx)
	assert.Equal(t, 1, lz)
}
