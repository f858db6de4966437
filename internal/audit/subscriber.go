package audit

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/block-gravity/internal/eventbus"
	"github.com/annel0/block-gravity/internal/gravity"
	"github.com/annel0/block-gravity/internal/logging"
	"github.com/annel0/block-gravity/internal/world/block"
)

// recordedTypes — события, которые пишутся в журнал.
var recordedTypes = []string{
	string(gravity.EventCellEmptied),
	string(gravity.EventBlockLanded),
	string(gravity.EventBlockDropped),
	string(gravity.EventPlacementDenied),
}

// RecordFromEnvelope строит запись журнала из события шины.
// ID записи совпадает с ID события.
func RecordFromEnvelope(env *eventbus.Envelope) (Record, error) {
	ev, payload, err := eventbus.DecodeBlockEvent(env)
	if err != nil {
		return Record{}, err
	}
	action, err := ActionFor(ev.Type)
	if err != nil {
		return Record{}, err
	}
	at := env.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	name := payload.BlockName
	if name == "" {
		name = block.NameOf(ev.Block)
	}
	return Record{
		ID:     env.ID,
		Action: action,
		Cell:   ev.Cell,
		Kind:   ev.Block,
		Name:   name,
		Source: SourceGravity,
		At:     at,
	}, nil
}

// Subscribe подписывает журнал на события шины. Ошибки записи логируются и
// не останавливают подписку.
func Subscribe(ctx context.Context, bus eventbus.EventBus, repo Repository, log *logging.Logger) (eventbus.Subscription, error) {
	return bus.Subscribe(ctx, eventbus.Filter{Types: recordedTypes}, func(ctx context.Context, env *eventbus.Envelope) {
		rec, err := RecordFromEnvelope(env)
		if err != nil {
			if !errors.Is(err, ErrUnsupportedEvent) {
				log.Warn("Событие %s %s не разобрано: %v", env.EventType, env.ID, err)
			}
			return
		}
		if err := repo.Save(ctx, rec); err != nil {
			log.Error("Ошибка записи в журнал (%s %v): %v", rec.Action, rec.Cell, err)
		}
	})
}
