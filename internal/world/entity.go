package world

import (
	"sort"
	"sync"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// FallingBlock — визуальное представление обрушившегося блока.
// Каждый тик сущность опускается на одну клетку, пока под ней есть воздух.
type FallingBlock struct {
	ID       uint64
	Block    block.BlockID
	Cell     vec.Vec3
	Position vec.Vec3Float
}

// Entities управляет падающими блоками мира
type Entities struct {
	world        *World
	entities     map[uint64]*FallingBlock
	nextEntityID uint64
	land         LandFunc
	onEvent      EventFunc
	mu           sync.Mutex
}

// NewEntities создаёт менеджер сущностей для мира
func NewEntities(w *World) *Entities {
	return &Entities{
		world:        w,
		entities:     make(map[uint64]*FallingBlock),
		nextEntityID: 1000, // Начинаем с 1000, чтобы избежать конфликтов с малыми ID
	}
}

// SetLandFunc задаёт проверку приземления.
func (e *Entities) SetLandFunc(fn LandFunc) {
	e.mu.Lock()
	e.land = fn
	e.mu.Unlock()
}

// SetEventFunc задаёт получателя событий сущностей.
func (e *Entities) SetEventFunc(fn EventFunc) {
	e.mu.Lock()
	e.onEvent = fn
	e.mu.Unlock()
}

// Spawn создаёт падающий блок в центре клетки и возвращает его ID.
func (e *Entities) Spawn(cell vec.Vec3, id block.BlockID) uint64 {
	e.mu.Lock()
	entityID := e.nextEntityID
	e.nextEntityID++
	fb := &FallingBlock{ID: entityID, Block: id, Cell: cell, Position: cell.Center()}
	e.entities[entityID] = fb
	emit := e.onEvent
	e.mu.Unlock()

	if emit != nil {
		emit(EntityEvent{EventType: EventTypeEntitySpawn, EntityID: entityID, Cell: cell, Position: fb.Position, Block: id})
	}
	return entityID
}

// Despawn удаляет сущность. Возвращает false, если её уже нет.
func (e *Entities) Despawn(entityID uint64) bool {
	e.mu.Lock()
	fb, ok := e.entities[entityID]
	if ok {
		delete(e.entities, entityID)
	}
	emit := e.onEvent
	e.mu.Unlock()

	if ok && emit != nil {
		emit(EntityEvent{EventType: EventTypeEntityDespawn, EntityID: entityID, Cell: fb.Cell, Position: fb.Position, Block: fb.Block})
	}
	return ok
}

// Get возвращает копию сущности по ID
func (e *Entities) Get(entityID uint64) (FallingBlock, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fb, ok := e.entities[entityID]
	if !ok {
		return FallingBlock{}, false
	}
	return *fb, true
}

// Count возвращает количество активных падающих блоков
func (e *Entities) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entities)
}

// Tick опускает все падающие блоки на одну клетку и обрабатывает приземления.
// Сущности обрабатываются в порядке возрастания ID.
func (e *Entities) Tick() {
	e.mu.Lock()
	ids := make([]uint64, 0, len(e.entities))
	for id := range e.entities {
		ids = append(ids, id)
	}
	land, emit := e.land, e.onEvent
	e.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		e.mu.Lock()
		fb, ok := e.entities[id]
		e.mu.Unlock()
		if !ok {
			continue
		}

		below := fb.Cell.Below()
		if below.Y < e.world.Floor() {
			// Провалился за пределы мира
			e.Despawn(id)
			continue
		}

		if e.world.KindAt(below) == block.AirBlockID {
			fb.Cell = below
			fb.Position = below.Center()
			if emit != nil {
				emit(EntityEvent{EventType: EventTypeEntityMove, EntityID: id, Cell: fb.Cell, Position: fb.Position, Block: fb.Block})
			}
			continue
		}

		e.mu.Lock()
		delete(e.entities, id)
		e.mu.Unlock()

		evType := EventTypeEntityLand
		if e.world.KindAt(fb.Cell) != block.AirBlockID || (land != nil && !land(fb.Cell, fb.Block)) {
			evType = EventTypeEntityDrop
		} else {
			e.world.SetBlock(fb.Cell, fb.Block)
		}
		if emit != nil {
			emit(EntityEvent{EventType: evType, EntityID: id, Cell: fb.Cell, Position: fb.Position, Block: fb.Block})
		}
	}
}
