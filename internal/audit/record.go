// Package audit ведёт журнал изменений мира, вызванных гравитацией:
// каждое обрушение и каждое приземление падающего блока записывается
// отдельной записью, чтобы изменения можно было найти и откатить.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/block-gravity/internal/gravity"
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// ErrUnsupportedEvent — уведомление движка не пишется в журнал.
var ErrUnsupportedEvent = errors.New("audit: event is not recorded")

// Action — тип изменения.
type Action string

const (
	ActionRemoval   Action = "removal"   // Блок обрушился, клетка опустела
	ActionPlacement Action = "placement" // Падающий блок занял клетку
	ActionDrop      Action = "drop"      // Падающий блок выпал предметом
	ActionDenied    Action = "denied"    // Установка без опоры отклонена
)

// SourceGravity — источник всех записей движка.
const SourceGravity = "#gravity"

// Record — одна запись журнала.
type Record struct {
	ID     string        `json:"id" bson:"_id"`
	Action Action        `json:"action" bson:"action"`
	Cell   vec.Vec3      `json:"cell" bson:"cell"`
	Kind   block.BlockID `json:"kind" bson:"kind"`
	Name   string        `json:"name" bson:"name"`
	Source string        `json:"source" bson:"source"`
	At     time.Time     `json:"at" bson:"at"`
}

// Query ограничивает выборку. Нулевые поля не фильтруют.
type Query struct {
	Cell   *vec.Vec3
	Action Action
	Since  time.Time
	Limit  int
}

// DefaultLimit применяется, если в Query не указан Limit.
const DefaultLimit = 100

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func (q Query) match(r Record) bool {
	if q.Cell != nil && *q.Cell != r.Cell {
		return false
	}
	if q.Action != "" && q.Action != r.Action {
		return false
	}
	if !q.Since.IsZero() && r.At.Before(q.Since) {
		return false
	}
	return true
}

// Repository хранит записи журнала.
type Repository interface {
	Save(ctx context.Context, r Record) error
	// List возвращает записи от новых к старым.
	List(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// ActionFor сопоставляет уведомлению движка тип записи.
func ActionFor(t gravity.EventType) (Action, error) {
	switch t {
	case gravity.EventCellEmptied:
		return ActionRemoval, nil
	case gravity.EventBlockLanded:
		return ActionPlacement, nil
	case gravity.EventBlockDropped:
		return ActionDrop, nil
	case gravity.EventPlacementDenied:
		return ActionDenied, nil
	default:
		return "", ErrUnsupportedEvent
	}
}
