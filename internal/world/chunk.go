package world

import (
	"sync"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// ChunkSize — длина ребра чанка в блоках.
const ChunkSize = 16

// Chunk представляет участок мира размером 16x16x16 блоков
type Chunk struct {
	Coords vec.Vec3 // Координаты чанка в мире

	// Blocks[x][y][z] — локальные координаты
	Blocks [ChunkSize][ChunkSize][ChunkSize]block.BlockID

	Changes       map[vec.Vec3]struct{} // Изменённые локальные клетки
	ChangeCounter int                   // Счетчик изменений
	Mu            sync.RWMutex          // Мьютекс для безопасного доступа
}

// NewChunk создаёт новый чанк с указанными координатами
func NewChunk(coords vec.Vec3) *Chunk {
	return &Chunk{
		Coords:  coords,
		Changes: make(map[vec.Vec3]struct{}),
	}
}

// GetBlock возвращает ID блока по локальным координатам
func (c *Chunk) GetBlock(local vec.Vec3) block.BlockID {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Blocks[local.X][local.Y][local.Z]
}

// SetBlock устанавливает блок по локальным координатам
func (c *Chunk) SetBlock(local vec.Vec3, id block.BlockID) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if c.Blocks[local.X][local.Y][local.Z] == id {
		return
	}
	c.Blocks[local.X][local.Y][local.Z] = id
	c.Changes[local] = struct{}{}
	c.ChangeCounter++
}

// IsDirty возвращает true, если в чанке есть несохранённые изменения
func (c *Chunk) IsDirty() bool {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.ChangeCounter > 0
}

// ResetChanges сбрасывает счётчик изменений после сохранения
func (c *Chunk) ResetChanges() {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Changes = make(map[vec.Vec3]struct{})
	c.ChangeCounter = 0
}

// Snapshot возвращает копию блоков чанка в плоском виде (x, y, z по порядку).
func (c *Chunk) Snapshot() []block.BlockID {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	out := make([]block.BlockID, 0, ChunkSize*ChunkSize*ChunkSize)
	for x := 0; x < ChunkSize; x++ {
		for y := 0; y < ChunkSize; y++ {
			for z := 0; z < ChunkSize; z++ {
				out = append(out, c.Blocks[x][y][z])
			}
		}
	}
	return out
}

// Restore заполняет чанк из плоского снимка (см. Snapshot). Изменения не
// отмечаются: данные считаются уже сохранёнными. Снимок неверного размера
// или с незарегистрированным блоком отклоняется целиком.
func (c *Chunk) Restore(flat []block.BlockID) bool {
	if len(flat) != ChunkSize*ChunkSize*ChunkSize {
		return false
	}
	for _, id := range flat {
		if !block.IsValidBlockID(id) {
			return false
		}
	}
	c.Mu.Lock()
	defer c.Mu.Unlock()

	i := 0
	for x := 0; x < ChunkSize; x++ {
		for y := 0; y < ChunkSize; y++ {
			for z := 0; z < ChunkSize; z++ {
				c.Blocks[x][y][z] = flat[i]
				i++
			}
		}
	}
	return true
}
