package gravity

import (
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// Клетки 2..13 вдоль направления поршня, которые он мог сдвинуть.
const (
	pistonSweepFrom = 2
	pistonSweepTo   = 13
)

// LandingAction — решение о приземлении падающего блока.
type LandingAction uint8

const (
	LandingDefault LandingAction = iota // Хук не вмешивается
	LandingPlace                        // Блок занимает клетку
	LandingDrop                         // Приземление отменено, блок выпадает предметом
)

// String возвращает строковое представление действия
func (a LandingAction) String() string {
	switch a {
	case LandingPlace:
		return "place"
	case LandingDrop:
		return "drop"
	default:
		return "default"
	}
}

// LandingHook — внешняя политика приземления (например, рассыпание песка
// в соседние колонки). LandingDefault передаёт решение движку.
type LandingHook func(cell vec.Vec3, kind block.BlockID) LandingAction

// OnBlockPlace — игрок ставит блок. false отменяет установку.
func (e *Engine) OnBlockPlace(cell vec.Vec3, kind block.BlockID) bool {
	return e.CheckPlacement(cell, kind)
}

// OnBlockBreak — блок разрушен.
func (e *Engine) OnBlockBreak(cell vec.Vec3) {
	e.NotifyRemoved(cell)
}

// OnBlockBurn — блок сгорел.
func (e *Engine) OnBlockBurn(cell vec.Vec3) {
	e.NotifyRemoved(cell)
}

// OnExplosion — взрыв уничтожил набор блоков; каждый обрабатывается как
// отдельное удаление.
func (e *Engine) OnExplosion(cells []vec.Vec3) {
	for _, cell := range cells {
		e.NotifyRemoved(cell)
	}
}

// OnIgnite — поджог блока. Подожжённый динамит считается удалённым.
func (e *Engine) OnIgnite(cell vec.Vec3) {
	if e.world.KindAt(cell) == block.TNTBlockID {
		e.NotifyRemoved(cell)
	}
}

// OnPistonExtend — поршень выдвинулся. Сдвинутые клетки перепроверяются
// после того, как блоки встанут на новые места.
func (e *Engine) OnPistonExtend(piston, dir vec.Vec3) {
	cells := make([]vec.Vec3, 0, pistonSweepTo-pistonSweepFrom+1)
	for i := pistonSweepFrom; i <= pistonSweepTo; i++ {
		cells = append(cells, piston.Relative(dir, i))
	}
	e.scheduler.ScheduleDelayed(e.pistonDelay, func() {
		e.cascade.EvaluateCandidates(cells, nil)
	})
}

// OnPistonRetract — поршень втянулся; клетка перед ним освободилась.
func (e *Engine) OnPistonRetract(piston, dir vec.Vec3) {
	vacated := piston.Relative(dir, 1)
	e.scheduler.ScheduleDelayed(e.pistonDelay, func() {
		e.NotifyRemoved(vacated)
	})
}

// OnBlockChanged — блок сменил тип не через разрушение. Переход в воздух
// обрабатывается как удаление в следующем тике, когда мир уже обновлён.
func (e *Engine) OnBlockChanged(cell vec.Vec3, to block.BlockID) {
	if !e.policy.IsEmpty(to) {
		return
	}
	e.scheduler.ScheduleDelayed(0, func() {
		e.NotifyRemoved(cell)
	})
}

// OnFallingBlockLand решает, может ли падающий блок занять cell. Если клетка
// под ним не держит вес, блок выпадает предметом.
func (e *Engine) OnFallingBlockLand(cell vec.Vec3, kind block.BlockID) LandingAction {
	action := LandingDefault
	if e.landingHook != nil {
		action = e.landingHook(cell, kind)
	}
	if action == LandingDefault {
		action = LandingPlace
		if !e.checker.IsSupported(cell, nil) {
			action = LandingDrop
		}
	}

	e.metrics.landingInc(action.String())
	evType := EventBlockLanded
	if action == LandingDrop {
		evType = EventBlockDropped
	}
	e.notifier.Notify(Event{Type: evType, Cell: cell, Block: kind})
	return action
}
