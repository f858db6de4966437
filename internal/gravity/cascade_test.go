package gravity

import (
	"testing"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsInvalidBudgets(t *testing.T) {
	h := newHarness(t, nil)
	base := DefaultConfig()
	base.World = h.world
	base.Policy = block.MustDefaultPolicy()
	base.Scheduler = h.loop
	base.Entities = h.world.Entities

	cfg := base
	cfg.SyncBudget = -1
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidBudget)

	cfg = base
	cfg.TickBudget = 0
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidBudget)

	cfg = base
	cfg.SyncBudget = 0
	_, err = New(cfg)
	assert.NoError(t, err, "K = 0 допустим: всё уходит в очередь")
}

func TestCascade_CandidatesOrder(t *testing.T) {
	h := newHarness(t, nil)
	removed := at(10, 5, -3)

	got := h.engine.Cascade().Candidates(removed)
	require.Len(t, got, 4+49)

	assert.Equal(t, []vec.Vec3{at(10, 5, -4), at(11, 5, -3), at(10, 5, -2), at(9, 5, -3)}, got[:4],
		"Сначала соседи N, E, S, W")
	assert.Equal(t, at(7, 6, -6), got[4], "Квадрат начинается с угла (-3, +1, -3)")
	assert.Equal(t, at(7, 6, -5), got[5], "Внутренний цикл идёт по z")
	assert.Equal(t, at(8, 6, -6), got[11])
	assert.Equal(t, at(13, 6, 0), got[len(got)-1])
}

// Колонна на полу: удаление нижнего блока обрушает верхний через тик.
func TestCascade_RemoveUnderBlock(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.SyncBudget = 0 })
	h.floor(8)
	e := h.engine

	assert.False(t, e.CheckPlacement(at(0, 5, 0), block.StoneBlockID), "Висящий блок ставить нельзя")
	require.Len(t, h.rec.ofType(EventPlacementDenied), 1)

	require.True(t, e.CheckPlacement(at(0, 1, 0), block.StoneBlockID), "Блок на полу держится")
	h.world.SetBlock(at(0, 1, 0), block.StoneBlockID)
	require.True(t, e.CheckPlacement(at(0, 2, 0), block.SandBlockID), "Блок на блоке держится")
	h.world.SetBlock(at(0, 2, 0), block.SandBlockID)

	e.NotifyRemoved(at(0, 1, 0))
	h.world.SetEmpty(at(0, 1, 0))

	assert.True(t, e.Cascade().Draining())
	assert.Equal(t, 1, e.Cascade().Pending(), "Верхний блок должен попасть в очередь")
	assert.Equal(t, block.SandBlockID, h.world.KindAt(at(0, 2, 0)), "До тика блок на месте")

	h.loop.Step()

	assert.Equal(t, block.AirBlockID, h.world.KindAt(at(0, 2, 0)))
	assert.False(t, e.Cascade().Draining(), "Очередь пуста — разбор остановлен")
	assert.Equal(t, 0, h.loop.Pending(), "Задача разбора снята с планировщика")

	spawned := h.rec.ofType(EventEntitySpawned)
	require.Len(t, spawned, 1)
	assert.Equal(t, at(0, 2, 0), spawned[0].Cell)
	assert.Equal(t, block.SandBlockID, spawned[0].Block, "Сущность сохраняет исходный тип")

	emptied := h.rec.ofType(EventCellEmptied)
	require.Len(t, emptied, 1)
	assert.Equal(t, at(0, 2, 0), emptied[0].Cell)

	fb, ok := h.world.Entities.Get(spawned[0].EntityID)
	require.True(t, ok, "Падающий блок создан")
	assert.Equal(t, block.SandBlockID, fb.Block)
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 2, Z: 0.5}, fb.Position, "Сущность в центре клетки")
}

func TestCascade_SyncBudgetCollapsesImmediately(t *testing.T) {
	h := newHarness(t, nil)
	h.floor(8)
	h.column(0, 0, 2)

	h.engine.NotifyRemoved(at(0, 1, 0))

	assert.Equal(t, block.AirBlockID, h.world.KindAt(at(0, 2, 0)), "Первые K блоков падают сразу")
	assert.Equal(t, 0, h.engine.Cascade().Pending())
	assert.True(t, h.engine.Cascade().Draining(), "Окрестность проверяется в следующем тике")

	h.world.SetEmpty(at(0, 1, 0))
	h.loop.Step()
	assert.False(t, h.engine.Cascade().Draining())
}

func TestCascade_SpawnThenEmptyOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.world.SetBlock(at(0, 4, 0), block.StoneBlockID)

	h.engine.Cascade().EvaluateCandidates([]vec.Vec3{at(0, 4, 0)}, nil)

	require.Len(t, h.rec.events, 2)
	assert.Equal(t, EventEntitySpawned, h.rec.events[0].Type)
	assert.Equal(t, EventCellEmptied, h.rec.events[1].Type)
	assert.Equal(t, h.rec.events[0].EntityID, h.rec.events[1].EntityID)
}

func TestCascade_VanishingBlockDespawns(t *testing.T) {
	h := newHarness(t, nil)
	h.world.SetBlock(at(0, 4, 0), block.LeavesBlockID)
	h.world.SetBlock(at(2, 4, 0), block.StoneBlockID)

	h.engine.Cascade().EvaluateCandidates([]vec.Vec3{at(0, 4, 0), at(2, 4, 0)}, nil)

	assert.Equal(t, block.AirBlockID, h.world.KindAt(at(0, 4, 0)))
	assert.Equal(t, block.AirBlockID, h.world.KindAt(at(2, 4, 0)))
	assert.Equal(t, 1, h.world.Entities.Count(), "Листва исчезает, камень падает")
	assert.Len(t, h.rec.ofType(EventEntitySpawned), 2, "Уведомление о сущности есть для обоих")
}

func TestCascade_IgnoresFloorAndNonSupportive(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.SyncBudget = 0 })
	h.world.SetBlock(at(0, 0, 0), block.StoneBlockID)
	h.world.SetBlock(at(1, 4, 0), block.TorchBlockID)
	h.world.SetBlock(at(2, 4, 0), block.DoorBlockID)

	h.engine.Cascade().EvaluateCandidates([]vec.Vec3{at(0, 0, 0), at(1, 4, 0), at(2, 4, 0), at(3, 4, 0)}, nil)

	assert.Equal(t, 0, h.engine.Cascade().Pending())
	assert.False(t, h.engine.Cascade().Draining(), "Без работы разбор не запускается")
	assert.Equal(t, 0, h.loop.Pending())
}

func TestCascade_NoDuplicateEnqueue(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.SyncBudget = 0 })
	cell := at(0, 4, 0)
	h.world.SetBlock(cell, block.StoneBlockID)

	c := h.engine.Cascade()
	c.EvaluateCandidates([]vec.Vec3{cell, cell}, nil)
	c.EvaluateCandidates([]vec.Vec3{cell}, nil)

	assert.Equal(t, 1, c.Pending(), "Клетка в очереди один раз")
	assert.Equal(t, 1, h.loop.Pending(), "Одна задача разбора")
}

func TestCascade_StaleEntryIsNoop(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.SyncBudget = 0 })
	cell := at(0, 4, 0)
	h.world.SetBlock(cell, block.StoneBlockID)

	h.engine.Cascade().EvaluateCandidates([]vec.Vec3{cell}, nil)
	require.Equal(t, 1, h.engine.Cascade().Pending())

	// Блок убран другим путём до тика
	h.world.SetEmpty(cell)
	h.loop.Step()

	assert.Empty(t, h.rec.ofType(EventEntitySpawned), "Пустая клетка не порождает сущность")
	assert.Equal(t, 0, h.world.Entities.Count())
	assert.False(t, h.engine.Cascade().Draining())
}

func TestCascade_SupportRestoredBeforeTick(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.SyncBudget = 0 })
	h.floor(4)
	cell := at(0, 3, 0)
	h.world.SetBlock(cell, block.StoneBlockID)

	c := h.engine.Cascade()
	c.EvaluateCandidates([]vec.Vec3{cell}, nil)
	require.Equal(t, 1, c.Pending())

	// Под блок достроили колонну до тика
	h.column(0, 0, 2)
	require.True(t, h.engine.Checker().CanStand(cell, nil))
	h.loop.Step()

	assert.Equal(t, block.StoneBlockID, h.world.KindAt(cell), "Блок с восстановленной опорой не падает")
	assert.Empty(t, h.rec.ofType(EventEntitySpawned))
	assert.Equal(t, 0, h.world.Entities.Count())
	assert.False(t, c.Draining())
	assert.Equal(t, 0, c.Pending())
}

func TestCascade_LIFOOrder(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.SyncBudget = 0
		cfg.TickBudget = 1
	})
	cells := []vec.Vec3{at(0, 4, 0), at(5, 4, 0), at(10, 4, 0)}
	for _, c := range cells {
		h.world.SetBlock(c, block.StoneBlockID)
	}

	h.engine.Cascade().EvaluateCandidates(cells, nil)
	h.drain(t, 10)

	spawned := h.rec.ofType(EventEntitySpawned)
	require.Len(t, spawned, 3)
	assert.Equal(t, cells[2], spawned[0].Cell, "Последний добавленный падает первым")
	assert.Equal(t, cells[1], spawned[1].Cell)
	assert.Equal(t, cells[0], spawned[2].Cell)
}

func TestCascade_ThroughputBound(t *testing.T) {
	const (
		width  = 10
		depth  = 25
		budget = 100
	)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	h := newHarness(t, func(cfg *Config) {
		cfg.SyncBudget = 0
		cfg.TickBudget = budget
		cfg.Metrics = metrics
	})

	var platform []vec.Vec3
	for x := 0; x < width; x++ {
		for z := 0; z < depth; z++ {
			cell := at(x, 10, z)
			h.world.SetBlock(cell, block.StoneBlockID)
			platform = append(platform, cell)
		}
	}
	n := len(platform)
	want := (n + budget - 1) / budget

	c := h.engine.Cascade()
	c.EvaluateCandidates(platform, nil)
	require.Equal(t, n, c.Pending(), "Вся платформа висит")
	assert.Equal(t, float64(n), testutil.ToFloat64(metrics.queueDepth))

	for tick := 1; tick <= want; tick++ {
		require.True(t, c.Draining(), "Разбор активен до последнего тика")
		h.loop.Step()
		assert.Equal(t, max(n-tick*budget, 0), c.Pending())
	}

	assert.False(t, c.Draining(), "После ceil(N/M) тиков очередь пуста")
	assert.Equal(t, float64(n), testutil.ToFloat64(metrics.collapsed.WithLabelValues("tick")))
	assert.Equal(t, float64(want), testutil.ToFloat64(metrics.drainTicks))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.queueDepth))
	for _, cell := range platform {
		assert.Equal(t, block.AirBlockID, h.world.KindAt(cell))
	}
}

// Платформа на одной колонне: после удаления верха колонны падает всё,
// что держалось на ней, а остаток колонны стоит.
func TestCascade_TerminatesOnFloatingStructure(t *testing.T) {
	h := newHarness(t, nil)
	h.floor(8)
	h.column(0, 0, 4)
	for y := 5; y <= 6; y++ {
		h.world.Fill(at(-3, y, -3), at(3, y, 3), block.StoneBlockID)
	}

	h.engine.NotifyRemoved(at(0, 4, 0))
	h.world.SetEmpty(at(0, 4, 0))
	h.drain(t, 100)

	for y := 5; y <= 6; y++ {
		for x := -3; x <= 3; x++ {
			for z := -3; z <= 3; z++ {
				assert.Equal(t, block.AirBlockID, h.world.KindAt(at(x, y, z)), "(%d,%d,%d) должна обрушиться", x, y, z)
			}
		}
	}
	for y := 1; y <= 3; y++ {
		assert.Equal(t, block.StoneBlockID, h.world.KindAt(at(0, y, 0)), "Колонна под удалённым блоком стоит")
	}
	assert.Equal(t, 2*49, h.world.Entities.Count())
	assert.Len(t, h.rec.ofType(EventCellEmptied), 2*49, "Каждая клетка обрушена ровно один раз")
}

func TestCascade_ChainAcrossTicks(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.SyncBudget = 0 })
	h.floor(8)
	// Стена на колонне: (0,1..3,0) и горизонтальная балка на высоте 3
	h.column(0, 0, 3)
	h.world.Fill(at(1, 3, 0), at(3, 3, 0), block.StoneBlockID)
	// Блоки над балкой
	h.world.Fill(at(1, 4, 0), at(3, 4, 0), block.StoneBlockID)

	h.engine.NotifyRemoved(at(0, 3, 0))
	h.world.SetEmpty(at(0, 3, 0))
	ticks := h.drain(t, 100)

	assert.GreaterOrEqual(t, ticks, 2, "Каскад идёт слоями по тикам")
	for x := 1; x <= 3; x++ {
		assert.Equal(t, block.AirBlockID, h.world.KindAt(at(x, 3, 0)))
		assert.Equal(t, block.AirBlockID, h.world.KindAt(at(x, 4, 0)))
	}
}
