package world

import (
	"math/rand"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
	"github.com/aquilax/go-perlin"
)

// WorldGenerator генерирует ландшафт мира
type WorldGenerator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб основного шума (высота)
	MaxHeight     int     // Максимальная высота рельефа над floor
	ForestDensity float64 // Плотность деревьев (от 0 до 1)

	noise *perlin.Perlin
}

// NewWorldGenerator создаёт новый генератор мира
func NewWorldGenerator(seed int64) *WorldGenerator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав

	return &WorldGenerator{
		Seed:          seed,
		NoiseScale:    0.05, // Настройка сглаженности ландшафта
		MaxHeight:     8,
		ForestDensity: 0.02,
		noise:         perlin.NewPerlin(alpha, beta, n, seed),
	}
}

// Height возвращает высоту рельефа (над floor) для колонки x, z.
func (wg *WorldGenerator) Height(x, z int) int {
	// Значение шума от -1 до 1, переводим в 0..1
	n := (wg.noise.Noise2D(float64(x)*wg.NoiseScale, float64(z)*wg.NoiseScale) + 1.0) / 2.0
	h := int(n * float64(wg.MaxHeight))
	if h < 1 {
		h = 1
	}
	return h
}

// Generate заполняет квадрат колонок [-radius, radius] по X и Z:
// коренная порода на floor, камень, земля и трава сверху, редкие деревья.
func (wg *WorldGenerator) Generate(w *World, radius int) {
	rng := rand.New(rand.NewSource(wg.Seed))
	floor := w.Floor()

	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			height := wg.Height(x, z)
			w.SetBlock(vec.Vec3{X: x, Y: floor, Z: z}, block.BedrockBlockID)

			top := floor + height
			for y := floor + 1; y <= top; y++ {
				id := block.StoneBlockID
				switch {
				case y == top:
					id = block.GrassBlockID
				case y >= top-2:
					id = block.DirtBlockID
				}
				w.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, id)
			}

			if rng.Float64() < wg.ForestDensity {
				wg.placeTree(w, vec.Vec3{X: x, Y: top + 1, Z: z})
			}
		}
	}
}

// placeTree ставит ствол из трёх блоков и шапку листвы.
func (wg *WorldGenerator) placeTree(w *World, base vec.Vec3) {
	for i := 0; i < 3; i++ {
		w.SetBlock(base.Add(vec.Vec3{Y: i}), block.LogBlockID)
	}
	crown := base.Add(vec.Vec3{Y: 3})
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			w.SetBlock(crown.Add(vec.Vec3{X: dx, Z: dz}), block.LeavesBlockID)
		}
	}
}
