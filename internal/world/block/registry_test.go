package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	id, err := Parse("Grass")
	require.NoError(t, err)
	assert.Equal(t, Grass, id)

	id, err = Parse(" sand ")
	require.NoError(t, err)
	assert.Equal(t, Sand, id)

	_, err = Parse("lava")
	assert.Error(t, err)
}

func TestSolidity(t *testing.T) {
	assert.False(t, Air.IsSolid())
	assert.True(t, Grass.IsSolid())
	assert.True(t, Stone.IsSolid())
	assert.False(t, ID(200).IsSolid(), "незарегистрированный блок не твёрдый")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"air", "grass", "dirt", "sand", "stone"}, Names())
	assert.Equal(t, "block#200", ID(200).String())
}
