package gravity

import (
	"errors"
	"fmt"

	"github.com/annel0/block-gravity/internal/logging"
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// ErrInvalidBudget возвращается при неположительном бюджете разбора очереди.
var ErrInvalidBudget = errors.New("invalid cascade budget")

const (
	// DefaultSyncBudget — сколько блоков обрушается сразу в ответ на событие.
	DefaultSyncBudget = 10
	// DefaultTickBudget — сколько блоков из очереди обрушается за тик.
	DefaultTickBudget = 100

	// aboveRadius — полуразмер квадрата 7x7 над удалённой клеткой.
	aboveRadius = 3
)

// CascadeConfig — зависимости и бюджеты очереди обрушения.
type CascadeConfig struct {
	World     WorldView
	Checker   *SupportChecker
	Policy    block.Policy
	Scheduler Scheduler
	Entities  EntitySpawner
	Notifier  Notifier
	Metrics   *Metrics
	Logger    *logging.Logger

	SyncBudget int // K: 0 — всё в очередь
	TickBudget int // M: не меньше 1
}

// Cascade владеет LIFO-очередью обрушения и состоянием разбора
// (idle/active). Работает в одном потоке: все методы вызываются из тиков
// мира или из обработчиков событий на той же горутине.
type Cascade struct {
	world     WorldView
	checker   *SupportChecker
	policy    block.Policy
	scheduler Scheduler
	entities  EntitySpawner
	notifier  Notifier
	metrics   *Metrics
	log       *logging.Logger

	syncBudget int
	tickBudget int

	queue  []vec.Vec3
	queued map[vec.Vec3]struct{}
	// rescan — клетки, обрушенные синхронно в ответ на событие. Их окрестность
	// проверяется в следующем тике, когда мир уже применил исходное удаление.
	rescan []vec.Vec3

	draining bool
	taskID   uint64
}

// NewCascade проверяет конфигурацию и создаёт очередь в состоянии idle.
func NewCascade(cfg CascadeConfig) (*Cascade, error) {
	if cfg.World == nil || cfg.Checker == nil || cfg.Scheduler == nil || cfg.Entities == nil {
		return nil, errors.New("cascade: world, checker, scheduler and entities are required")
	}
	if cfg.SyncBudget < 0 {
		return nil, fmt.Errorf("%w: sync budget %d", ErrInvalidBudget, cfg.SyncBudget)
	}
	if cfg.TickBudget < 1 {
		return nil, fmt.Errorf("%w: tick budget %d", ErrInvalidBudget, cfg.TickBudget)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = MultiNotifier(nil)
	}
	return &Cascade{
		world:      cfg.World,
		checker:    cfg.Checker,
		policy:     cfg.Policy,
		scheduler:  cfg.Scheduler,
		entities:   cfg.Entities,
		notifier:   notifier,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
		syncBudget: cfg.SyncBudget,
		tickBudget: cfg.TickBudget,
		queued:     make(map[vec.Vec3]struct{}),
	}, nil
}

// Draining возвращает true, пока активен разбор очереди.
func (c *Cascade) Draining() bool {
	return c.draining
}

// Pending возвращает длину очереди.
func (c *Cascade) Pending() int {
	return len(c.queue)
}

// Candidates возвращает клетки, которые могли потерять опору после удаления
// removed: четыре боковых соседа и квадрат 7x7 уровнем выше.
// Порядок: соседи N, E, S, W, затем квадрат по x, внутри — по z.
func (c *Cascade) Candidates(removed vec.Vec3) []vec.Vec3 {
	side := 2*aboveRadius + 1
	out := make([]vec.Vec3, 0, len(c.checker.topo.Directions)+side*side)
	for _, dir := range c.checker.topo.Directions {
		out = append(out, removed.Add(dir.Primary))
	}
	for x := -aboveRadius; x <= aboveRadius; x++ {
		for z := -aboveRadius; z <= aboveRadius; z++ {
			out = append(out, removed.Add(vec.Vec3{X: x, Y: 1, Z: z}))
		}
	}
	return out
}

// HandleRemoved проверяет окрестность удалённой клетки. Сама клетка
// считается пустой, даже если мир ещё не обновлён.
func (c *Cascade) HandleRemoved(removed vec.Vec3) {
	c.EvaluateCandidates(c.Candidates(removed), &removed)
}

// EvaluateCandidates отбирает клетки без опоры. Первые K обрушаются сразу,
// если очередь короче K; остальные откладываются в очередь.
func (c *Cascade) EvaluateCandidates(candidates []vec.Vec3, hint *vec.Vec3) {
	unsupported := c.unsupported(candidates, hint)

	for i, cell := range unsupported {
		if i < c.syncBudget && len(c.queue) < c.syncBudget {
			if c.collapse(cell, "event") {
				c.rescan = append(c.rescan, cell)
			}
			continue
		}
		c.push(cell)
	}
	c.ensureDraining()
}

// unsupported фильтрует кандидатов: выше floor, может быть опорой, ещё не в
// очереди и не держится ни снизу, ни соседями.
func (c *Cascade) unsupported(candidates []vec.Vec3, hint *vec.Vec3) []vec.Vec3 {
	floor := c.world.Floor()
	var out []vec.Vec3
	seen := make(map[vec.Vec3]struct{}, len(candidates))
	for _, cell := range candidates {
		if cell.Y <= floor || isHint(cell, hint) {
			continue
		}
		if _, ok := c.queued[cell]; ok {
			continue
		}
		if _, ok := seen[cell]; ok {
			continue
		}
		seen[cell] = struct{}{}
		if !c.checker.IsSupportive(c.world.KindAt(cell)) {
			continue
		}
		if c.checker.IsSupported(cell, hint) || c.checker.IsSupportedByNeighbors(cell, hint) {
			continue
		}
		out = append(out, cell)
	}
	return out
}

func (c *Cascade) push(cell vec.Vec3) {
	c.queue = append(c.queue, cell)
	c.queued[cell] = struct{}{}
}

func (c *Cascade) pop() vec.Vec3 {
	last := len(c.queue) - 1
	cell := c.queue[last]
	c.queue = c.queue[:last]
	delete(c.queued, cell)
	return cell
}

// ensureDraining переводит idle -> active, если есть работа.
func (c *Cascade) ensureDraining() {
	c.metrics.setQueueDepth(len(c.queue))
	if c.draining || (len(c.queue) == 0 && len(c.rescan) == 0) {
		return
	}
	c.draining = true
	c.taskID = c.scheduler.ScheduleRecurring(c.DrainStep)
	c.log.Debug("Разбор очереди запущен: %d в очереди", len(c.queue))
}

// DrainStep выполняется раз в тик, пока разбор активен: проверяет
// окрестность блоков, обрушенных по событию, снимает до M клеток с вершины
// очереди и обрушает их. Новые клетки без опоры, найденные вокруг
// обрушенных, попадают в очередь и разбираются в следующих тиках.
func (c *Cascade) DrainStep() {
	c.metrics.drainTick()

	pending := c.rescan
	c.rescan = nil
	for _, cell := range pending {
		c.requeueAround(cell)
	}

	collapsed := make([]vec.Vec3, 0, min(c.tickBudget, len(c.queue)))
	for i := 0; i < c.tickBudget && len(c.queue) > 0; i++ {
		cell := c.pop()
		// Опора могла появиться, пока клетка ждала в очереди
		if c.checker.CanStand(cell, nil) {
			continue
		}
		if c.collapse(cell, "tick") {
			collapsed = append(collapsed, cell)
		}
	}
	for _, cell := range collapsed {
		c.requeueAround(cell)
	}

	c.metrics.setQueueDepth(len(c.queue))
	if len(c.queue) == 0 && len(c.rescan) == 0 {
		c.scheduler.Cancel(c.taskID)
		c.taskID = 0
		c.draining = false
		c.log.Debug("Разбор очереди завершён")
	}
}

// requeueAround ставит в очередь клетки без опоры вокруг обрушенной клетки.
func (c *Cascade) requeueAround(cell vec.Vec3) {
	for _, found := range c.unsupported(c.Candidates(cell), &cell) {
		c.push(found)
	}
}

// collapse превращает блок в падающую сущность и освобождает клетку.
// Если клетка уже пуста или блок не может быть опорой (обрушен другим
// путём, заменён), ничего не делает и возвращает false.
func (c *Cascade) collapse(cell vec.Vec3, phase string) bool {
	kind := c.world.KindAt(cell)
	if !c.checker.IsSupportive(kind) {
		return false
	}

	entityID := c.entities.Spawn(cell, kind)
	c.notifier.Notify(Event{Type: EventEntitySpawned, Cell: cell, Block: kind, EntityID: entityID})
	c.notifier.Notify(Event{Type: EventCellEmptied, Cell: cell, Block: kind, EntityID: entityID})
	c.world.SetEmpty(cell)

	if c.policy.Vanishes(kind) {
		c.entities.Despawn(entityID)
	}

	c.metrics.collapsedInc(phase)
	c.log.Trace("Блок %s в %v обрушился (%s)", block.NameOf(kind), cell, phase)
	return true
}
