// Package gravity решает, держится ли блок воксельного мира, и обрушает
// блоки, потерявшие опору, растягивая каскад на несколько тиков.
package gravity

import (
	"errors"

	"github.com/annel0/block-gravity/internal/logging"
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
)

// DefaultPistonDelay — через сколько тиков после движения поршня
// перепроверяются затронутые клетки.
const DefaultPistonDelay = 4

// Config — параметры и зависимости движка.
type Config struct {
	World     WorldView
	Policy    block.Policy
	Topology  Topology // пустая — DefaultTopology()
	Scheduler Scheduler
	Entities  EntitySpawner
	Notifier  Notifier
	Metrics   *Metrics
	Logger    *logging.Logger

	SyncBudget  int
	TickBudget  int
	PistonDelay int

	// LandingHook опрашивается первым при приземлении падающего блока.
	LandingHook LandingHook
}

// DefaultConfig возвращает бюджеты и задержки по умолчанию; зависимости
// заполняет вызывающий.
func DefaultConfig() Config {
	return Config{
		Topology:    DefaultTopology(),
		SyncBudget:  DefaultSyncBudget,
		TickBudget:  DefaultTickBudget,
		PistonDelay: DefaultPistonDelay,
	}
}

// Engine — единственный экземпляр движка гравитации для мира. Владеет
// очередью обрушения; все вызовы должны идти из горутины тиков.
type Engine struct {
	world     WorldView
	policy    block.Policy
	checker   *SupportChecker
	cascade   *Cascade
	scheduler Scheduler
	notifier  Notifier
	metrics   *Metrics
	log       *logging.Logger

	pistonDelay int
	landingHook LandingHook
}

// New собирает движок. Ошибка конфигурации (таблица направлений, бюджеты)
// не даёт движку стартовать.
func New(cfg Config) (*Engine, error) {
	if cfg.World == nil {
		return nil, errors.New("gravity: world is required")
	}
	topo := cfg.Topology
	if len(topo.Directions) == 0 && topo.Reach == 0 {
		topo = DefaultTopology()
	}
	checker, err := NewSupportChecker(cfg.World, cfg.Policy, topo)
	if err != nil {
		return nil, err
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = MultiNotifier(nil)
	}

	cascade, err := NewCascade(CascadeConfig{
		World:      cfg.World,
		Checker:    checker,
		Policy:     cfg.Policy,
		Scheduler:  cfg.Scheduler,
		Entities:   cfg.Entities,
		Notifier:   notifier,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
		SyncBudget: cfg.SyncBudget,
		TickBudget: cfg.TickBudget,
	})
	if err != nil {
		return nil, err
	}

	delay := cfg.PistonDelay
	if delay < 0 {
		delay = 0
	}

	return &Engine{
		world:       cfg.World,
		policy:      cfg.Policy,
		checker:     checker,
		cascade:     cascade,
		scheduler:   cfg.Scheduler,
		notifier:    notifier,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
		pistonDelay: delay,
		landingHook: cfg.LandingHook,
	}, nil
}

// Checker возвращает проверку опоры движка.
func (e *Engine) Checker() *SupportChecker { return e.checker }

// Cascade возвращает очередь обрушения движка.
func (e *Engine) Cascade() *Cascade { return e.cascade }

// CheckPlacement — синхронное вето на установку блока. Блоки, которые не
// могут быть опорой, ставятся всегда; остальные только если держатся снизу
// или соседями. Слой floor держится всегда.
func (e *Engine) CheckPlacement(cell vec.Vec3, kind block.BlockID) bool {
	if !e.checker.IsSupportive(kind) || cell.Y <= e.world.Floor() {
		return true
	}
	if e.checker.CanStand(cell, nil) {
		return true
	}

	e.metrics.deniedInc()
	e.notifier.Notify(Event{Type: EventPlacementDenied, Cell: cell, Block: kind})
	e.log.Debug("Установка %s в %v отклонена: нет опоры", block.NameOf(kind), cell)
	return false
}

// NotifyRemoved сообщает движку, что блок в cell удаляется. Мир может ещё
// не быть обновлён: клетка всё равно считается пустой.
func (e *Engine) NotifyRemoved(cell vec.Vec3) {
	e.cascade.HandleRemoved(cell)
}
