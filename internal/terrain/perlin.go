package terrain

import (
	"context"
	"errors"
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// Константы высот для генерации (значения шума нормированы в [0, 1])
const (
	SandMax     = 0.35 // Ниже - песчаные низины
	StoneStart  = 0.75 // Выше - каменные холмы
	DirtBiomeLo = 0.40 // Биомный шум ниже - грязь вместо травы
)

// ErrNoNoise возвращается генератором, созданным не через NewPerlin
var ErrNoNoise = errors.New("terrain: генератор Перлина не инициализирован, используйте NewPerlin")

// Perlin генерирует холмистый ландшафт по двум шумам Перлина:
// высота и биом. Каждый экземпляр держит свои генераторы шума,
// поэтому создаётся только через NewPerlin.
type Perlin struct {
	seed       int64
	noiseScale float64 // Масштаб шума высоты
	biomeScale float64 // Масштаб шума биомов
	baseHeight int     // Высота при нулевом шуме
	amplitude  int     // Разброс высот
	depth      int     // Толщина столбца

	height *perlin.Perlin
	biome  *perlin.Perlin
}

// NewPerlin создаёт генератор с настройками по умолчанию
func NewPerlin(seed int64) *Perlin {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав

	return &Perlin{
		seed:       seed,
		noiseScale: 0.05,
		biomeScale: 0.02,
		baseHeight: 0,
		amplitude:  6,
		depth:      3,
		height:     perlin.NewPerlin(alpha, beta, n, seed),
		biome:      perlin.NewPerlin(alpha, beta, n, seed+42),
	}
}

// Seed возвращает зерно генератора
func (p *Perlin) Seed() int64 {
	return p.seed
}

// sample возвращает значение шума в диапазоне [0, 1]
func sample(p *perlin.Perlin, x, z, scale float64) float64 {
	v := (p.Noise2D(x*scale, z*scale) + 1.0) / 2.0
	return math.Max(0, math.Min(1, v))
}

func (p *Perlin) Column(ctx context.Context, x, z int) (world.Column, error) {
	if err := ctx.Err(); err != nil {
		return world.Column{}, err
	}
	if p.height == nil || p.biome == nil {
		return world.Column{}, ErrNoNoise
	}

	h := sample(p.height, float64(x), float64(z), p.noiseScale)
	b := sample(p.biome, float64(x), float64(z), p.biomeScale)

	top := p.baseHeight + int(math.Round(h*float64(p.amplitude)))
	return world.Column{Top: top, Depth: p.depth, Block: p.blockFor(h, b)}, nil
}

// blockFor выбирает материал поверхности по высоте и биому
func (p *Perlin) blockFor(height, biome float64) block.ID {
	switch {
	case height < SandMax:
		return block.Sand
	case height >= StoneStart:
		return block.Stone
	case biome < DirtBiomeLo:
		return block.Dirt
	default:
		return block.Grass
	}
}
