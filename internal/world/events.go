package world

import (
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// EventType определяет тип события сущности
type EventType uint8

const (
	EventTypeEntitySpawn   EventType = iota // Создание падающего блока
	EventTypeEntityMove                     // Падающий блок опустился на клетку
	EventTypeEntityLand                     // Блок приземлился и занял клетку
	EventTypeEntityDrop                     // Приземление отменено, блок выпал предметом
	EventTypeEntityDespawn                  // Удаление сущности
)

// String возвращает строковое представление типа события
func (t EventType) String() string {
	switch t {
	case EventTypeEntitySpawn:
		return "spawn"
	case EventTypeEntityMove:
		return "move"
	case EventTypeEntityLand:
		return "land"
	case EventTypeEntityDrop:
		return "drop"
	case EventTypeEntityDespawn:
		return "despawn"
	default:
		return "unknown"
	}
}

// EntityEvent представляет событие, связанное с падающим блоком
type EntityEvent struct {
	EventType EventType
	EntityID  uint64        // Идентификатор сущности
	Cell      vec.Vec3      // Клетка, в которой находится сущность
	Position  vec.Vec3Float // Мировые координаты сущности
	Block     block.BlockID // Материал падающего блока
}

// LandFunc решает, может ли падающий блок занять клетку cell.
// true — блок ставится, false — приземление отменяется и блок выпадает предметом.
type LandFunc func(cell vec.Vec3, id block.BlockID) bool

// EventFunc получает события сущностей.
type EventFunc func(ev EntityEvent)
