package implementations

import "github.com/annel0/block-gravity/internal/world/block"

// WaterBehavior реализует блок воды. Вода не является опорой.
type WaterBehavior struct{}

// ID возвращает идентификатор блока
func (b *WaterBehavior) ID() block.BlockID {
	return block.WaterBlockID
}

// Name возвращает имя блока
func (b *WaterBehavior) Name() string {
	return "water"
}

// IsSolid возвращает false
func (b *WaterBehavior) IsSolid() bool {
	return false
}
