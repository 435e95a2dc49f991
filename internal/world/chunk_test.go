package world

import (
	"errors"
	"testing"

	"github.com/annel0/voxel-stream/internal/render"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnVoxels(t *testing.T) {
	col := Column{Top: 0, Depth: 3, Block: block.Dirt}
	voxels := col.AppendVoxels(nil, 4, -2)

	require.Len(t, voxels, 3)
	assert.Equal(t, vec.Vec3{X: 4, Y: 0, Z: -2}, voxels[0].Pos)
	assert.Equal(t, vec.Vec3{X: 4, Y: -2, Z: -2}, voxels[2].Pos)

	assert.Empty(t, Column{Top: 5, Depth: 0, Block: block.Grass}.AppendVoxels(nil, 0, 0))
	assert.Empty(t, Column{Top: 5, Depth: 2, Block: block.Air}.AppendVoxels(nil, 0, 0))
	assert.Empty(t, Column{Top: 5, Depth: 2, Block: block.ID(200)}.AppendVoxels(nil, 0, 0), "неизвестный блок не даёт вокселей")
}

func TestChunkBoundsAndContains(t *testing.T) {
	c := NewChunk(vec.ChunkPos{X: -1, Z: 2}, 16, nil)

	minX, minZ, maxX, maxZ := c.Bounds()
	assert.Equal(t, -16, minX)
	assert.Equal(t, 32, minZ)
	assert.Equal(t, 0, maxX)
	assert.Equal(t, 48, maxZ)

	assert.True(t, c.Contains(-1, 40))
	assert.False(t, c.Contains(0, 40))
}

func TestChunkAttachDetach(t *testing.T) {
	voxels := []Voxel{
		{Pos: vec.Vec3{X: 0, Y: 0, Z: 0}, Block: block.Grass},
		{Pos: vec.Vec3{X: 1, Y: 0, Z: 0}, Block: block.Grass},
	}
	c := NewChunk(vec.ChunkPos{}, 16, voxels)
	scene := render.NewGraph()
	var alloc render.HandleAllocator

	c.Attach(scene, &alloc)
	assert.Equal(t, 2, scene.Len())
	require.Len(t, c.Handles, 2)
	assert.NotEqual(t, c.Handles[0].ID, c.Handles[1].ID)

	c.Detach(scene)
	assert.Equal(t, 0, scene.Len())
	assert.Empty(t, c.Handles)
}

func TestPlaceholder(t *testing.T) {
	c := NewPlaceholder(vec.ChunkPos{X: 3}, 16, 4, errors.New("boom"))
	assert.True(t, c.Failed())
	assert.Empty(t, c.Voxels)
	assert.Equal(t, 4, c.Attempts)
	assert.Equal(t, "failed", c.State.String())
}
