package gravity

import (
	"testing"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueOnly(cfg *Config) { cfg.SyncBudget = 0 }

func TestListener_BlockPlace(t *testing.T) {
	h := newHarness(t, nil)
	h.floor(4)
	e := h.engine

	assert.True(t, e.OnBlockPlace(at(0, 1, 0), block.StoneBlockID))
	assert.False(t, e.OnBlockPlace(at(0, 6, 0), block.StoneBlockID))
	assert.True(t, e.OnBlockPlace(at(0, 6, 0), block.TorchBlockID), "Несплошной блок можно ставить где угодно")
	assert.True(t, e.OnBlockPlace(at(3, 0, 3), block.StoneBlockID), "Слой floor держится всегда")

	denied := h.rec.ofType(EventPlacementDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, at(0, 6, 0), denied[0].Cell)
	assert.Equal(t, block.StoneBlockID, denied[0].Block)
}

func TestListener_BreakAndBurn(t *testing.T) {
	h := newHarness(t, queueOnly)
	h.floor(6)
	h.column(0, 0, 2)
	h.column(4, 0, 2)

	h.engine.OnBlockBreak(at(0, 1, 0))
	h.engine.OnBlockBurn(at(4, 1, 0))

	assert.Equal(t, 2, h.engine.Cascade().Pending(), "Оба верхних блока теряют опору")
}

func TestListener_Explosion(t *testing.T) {
	h := newHarness(t, queueOnly)
	h.floor(8)
	h.column(-4, 0, 2)
	h.column(4, 0, 2)

	h.engine.OnExplosion([]vec.Vec3{at(-4, 1, 0), at(4, 1, 0)})

	assert.Equal(t, 2, h.engine.Cascade().Pending(), "Каждая клетка взрыва — отдельное удаление")
}

func TestListener_Ignite(t *testing.T) {
	h := newHarness(t, queueOnly)
	h.floor(6)
	h.world.SetBlock(at(0, 1, 0), block.TNTBlockID)
	h.world.SetBlock(at(0, 2, 0), block.StoneBlockID)
	h.world.SetBlock(at(5, 1, 0), block.StoneBlockID)
	h.world.SetBlock(at(5, 2, 0), block.StoneBlockID)

	h.engine.OnIgnite(at(5, 1, 0))
	assert.Equal(t, 0, h.engine.Cascade().Pending(), "Поджог камня ничего не меняет")

	h.engine.OnIgnite(at(0, 1, 0))
	assert.Equal(t, 1, h.engine.Cascade().Pending(), "Подожжённый динамит считается удалённым")
}

func TestListener_PistonExtendDelayed(t *testing.T) {
	h := newHarness(t, queueOnly)
	piston := at(0, 5, 0)
	h.world.SetBlock(at(3, 5, 0), block.StoneBlockID)
	h.world.SetBlock(at(14, 5, 0), block.StoneBlockID)

	h.engine.OnPistonExtend(piston, vec.East)

	for i := 1; i < DefaultPistonDelay; i++ {
		h.loop.Step()
		assert.Equal(t, 0, h.engine.Cascade().Pending(), "До задержки поршня ничего не проверяется (тик %d)", i)
	}
	h.loop.Step()
	assert.Equal(t, 1, h.engine.Cascade().Pending(), "Клетка 14 за пределами хода поршня")

	h.drain(t, 10)
	assert.Equal(t, block.AirBlockID, h.world.KindAt(at(3, 5, 0)))
	assert.Equal(t, block.StoneBlockID, h.world.KindAt(at(14, 5, 0)))
}

func TestListener_PistonRetractDelayed(t *testing.T) {
	h := newHarness(t, queueOnly)
	h.floor(4)
	piston := at(0, 1, 0)
	h.world.SetBlock(at(1, 1, 0), block.StoneBlockID)
	h.world.SetBlock(at(1, 2, 0), block.StoneBlockID)

	h.engine.OnPistonRetract(piston, vec.East)
	for i := 0; i < DefaultPistonDelay; i++ {
		assert.Equal(t, 0, h.engine.Cascade().Pending())
		h.loop.Step()
	}

	assert.Equal(t, 1, h.engine.Cascade().Pending(), "Блок над освобождённой клеткой теряет опору")
}

func TestListener_BlockChanged(t *testing.T) {
	h := newHarness(t, queueOnly)
	h.floor(4)
	h.column(0, 0, 2)

	h.engine.OnBlockChanged(at(0, 1, 0), block.SandBlockID)
	assert.Equal(t, 0, h.loop.Pending(), "Замена на сплошной блок не обрабатывается")

	h.engine.OnBlockChanged(at(0, 1, 0), block.AirBlockID)
	h.world.SetEmpty(at(0, 1, 0))
	assert.Equal(t, 0, h.engine.Cascade().Pending(), "Обработка переносится на следующий тик")

	h.loop.Step()
	assert.Equal(t, 1, h.engine.Cascade().Pending())
}

func TestListener_FallingBlockLand(t *testing.T) {
	h := newHarness(t, nil)
	h.floor(4)
	h.world.SetBlock(at(1, 1, 0), block.DoorBlockID)

	assert.Equal(t, LandingPlace, h.engine.OnFallingBlockLand(at(0, 1, 0), block.SandBlockID))
	assert.Equal(t, LandingDrop, h.engine.OnFallingBlockLand(at(1, 2, 0), block.SandBlockID), "Дверь снизу не держит")

	assert.Len(t, h.rec.ofType(EventBlockLanded), 1)
	dropped := h.rec.ofType(EventBlockDropped)
	require.Len(t, dropped, 1)
	assert.Equal(t, at(1, 2, 0), dropped[0].Cell)
}

func TestListener_LandingHook(t *testing.T) {
	var asked []vec.Vec3
	h := newHarness(t, func(cfg *Config) {
		cfg.LandingHook = func(cell vec.Vec3, kind block.BlockID) LandingAction {
			asked = append(asked, cell)
			if kind == block.GravelBlockID {
				return LandingDrop
			}
			return LandingDefault
		}
	})
	h.floor(4)

	assert.Equal(t, LandingDrop, h.engine.OnFallingBlockLand(at(0, 1, 0), block.GravelBlockID), "Хук перекрывает решение")
	assert.Equal(t, LandingPlace, h.engine.OnFallingBlockLand(at(0, 1, 0), block.SandBlockID), "LandingDefault оставляет решение движку")
	assert.Len(t, asked, 2)
}

// Обрушившийся блок долетает до пола и встаёт на место через Entities.
func TestListener_FallingBlockReachesGround(t *testing.T) {
	h := newHarness(t, nil)
	h.floor(4)
	h.world.SetBlock(at(0, 3, 0), block.SandBlockID)
	h.world.Entities.SetLandFunc(func(cell vec.Vec3, id block.BlockID) bool {
		return h.engine.OnFallingBlockLand(cell, id) == LandingPlace
	})

	h.engine.Cascade().EvaluateCandidates([]vec.Vec3{at(0, 3, 0)}, nil)
	require.Equal(t, 1, h.world.Entities.Count())

	for i := 0; i < 5 && h.world.Entities.Count() > 0; i++ {
		h.world.Entities.Tick()
	}

	assert.Equal(t, 0, h.world.Entities.Count(), "Сущность приземлилась")
	assert.Equal(t, block.SandBlockID, h.world.KindAt(at(0, 1, 0)), "Блок встал на пол")
	assert.Len(t, h.rec.ofType(EventBlockLanded), 1)
}
