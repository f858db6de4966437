package gravity

import (
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// EventType — тип исходящего уведомления.
type EventType string

const (
	EventEntitySpawned   EventType = "EntitySpawned"   // Создан падающий блок
	EventCellEmptied     EventType = "CellEmptied"     // Клетка обрушилась и стала пустой
	EventPlacementDenied EventType = "PlacementDenied" // Установка блока без опоры отклонена
	EventBlockLanded     EventType = "BlockLanded"     // Падающий блок занял клетку
	EventBlockDropped    EventType = "BlockDropped"    // Приземление отменено, блок выпал предметом
)

// Event — уведомление о шаге обрушения для внешних слушателей
// (журнал аудита, шина событий).
type Event struct {
	Type     EventType     `json:"type"`
	Cell     vec.Vec3      `json:"cell"`
	Block    block.BlockID `json:"block"`
	EntityID uint64        `json:"entity_id,omitempty"`
}

// Notifier получает уведомления синхронно, в порядке шагов обрушения.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc адаптирует функцию к Notifier.
type NotifierFunc func(ev Event)

// Notify вызывает f(ev).
func (f NotifierFunc) Notify(ev Event) { f(ev) }

// MultiNotifier рассылает уведомление нескольким получателям по порядку.
type MultiNotifier []Notifier

// Notify вызывает каждого получателя.
func (m MultiNotifier) Notify(ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ev)
		}
	}
}

// EntitySpawner создаёт и удаляет падающие блоки.
type EntitySpawner interface {
	Spawn(cell vec.Vec3, id block.BlockID) uint64
	Despawn(entityID uint64) bool
}

// Scheduler вызывает задачи в тиках мира.
type Scheduler interface {
	ScheduleRecurring(fn func()) uint64
	ScheduleDelayed(delay int, fn func()) uint64
	Cancel(id uint64)
}
