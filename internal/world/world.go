package world

import (
	"sort"
	"sync"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// World — воксельный мир в памяти, разбитый на чанки 16x16x16.
// Клетки отсутствующих чанков считаются воздухом. Ниже floor мира нет.
type World struct {
	mu     sync.RWMutex
	chunks map[vec.Vec3]*Chunk
	floor  int

	Entities *Entities
}

// NewWorld создаёт пустой мир с указанным нижним уровнем.
func NewWorld(floor int) *World {
	w := &World{
		chunks: make(map[vec.Vec3]*Chunk),
		floor:  floor,
	}
	w.Entities = NewEntities(w)
	return w
}

// Floor возвращает Y самого нижнего слоя мира.
func (w *World) Floor() int {
	return w.floor
}

// KindAt возвращает тип блока в клетке.
func (w *World) KindAt(cell vec.Vec3) block.BlockID {
	if cell.Y < w.floor {
		return block.AirBlockID
	}
	w.mu.RLock()
	chunk, ok := w.chunks[cell.ChunkCoords()]
	w.mu.RUnlock()
	if !ok {
		return block.AirBlockID
	}
	return chunk.GetBlock(cell.LocalInChunk())
}

// SetBlock записывает блок в клетку. Запись ниже floor игнорируется.
func (w *World) SetBlock(cell vec.Vec3, id block.BlockID) {
	if cell.Y < w.floor {
		return
	}
	coords := cell.ChunkCoords()

	w.mu.Lock()
	chunk, ok := w.chunks[coords]
	if !ok {
		if id == block.AirBlockID {
			w.mu.Unlock()
			return
		}
		chunk = NewChunk(coords)
		w.chunks[coords] = chunk
	}
	w.mu.Unlock()

	chunk.SetBlock(cell.LocalInChunk(), id)
}

// SetEmpty заменяет блок в клетке воздухом.
func (w *World) SetEmpty(cell vec.Vec3) {
	w.SetBlock(cell, block.AirBlockID)
}

// Fill заполняет параллелепипед [from, to] блоком id.
func (w *World) Fill(from, to vec.Vec3, id block.BlockID) {
	for x := min(from.X, to.X); x <= max(from.X, to.X); x++ {
		for y := min(from.Y, to.Y); y <= max(from.Y, to.Y); y++ {
			for z := min(from.Z, to.Z); z <= max(from.Z, to.Z); z++ {
				w.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, id)
			}
		}
	}
}

// GetChunk возвращает чанк по координатам, если он загружен.
func (w *World) GetChunk(coords vec.Vec3) (*Chunk, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[coords]
	return c, ok
}

// PutChunk добавляет (или заменяет) чанк, например загруженный из хранилища.
func (w *World) PutChunk(c *Chunk) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks[c.Coords] = c
}

// Chunks возвращает все чанки в детерминированном порядке.
func (w *World) Chunks() []*Chunk {
	w.mu.RLock()
	out := make([]*Chunk, 0, len(w.chunks))
	for _, c := range w.chunks {
		out = append(out, c)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Coords, out[j].Coords
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}

// DirtyChunks возвращает чанки с несохранёнными изменениями.
func (w *World) DirtyChunks() []*Chunk {
	var out []*Chunk
	for _, c := range w.Chunks() {
		if c.IsDirty() {
			out = append(out, c)
		}
	}
	return out
}
