package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/block-gravity/internal/gravity"
	"github.com/annel0/block-gravity/internal/logging"
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world/block"
	"github.com/google/uuid"
)

// ErrClosed возвращается при публикации в закрытую шину.
var ErrClosed = errors.New("eventbus: closed")

// BlockEventVersion — версия схемы BlockEventPayload.
const BlockEventVersion = 1

// BlockEventPayload — полезная нагрузка событий обрушения.
type BlockEventPayload struct {
	Cell      vec.Vec3      `json:"cell"`
	Block     block.BlockID `json:"block"`
	BlockName string        `json:"block_name"`
	EntityID  uint64        `json:"entity_id,omitempty"`
}

// NewBlockEnvelope упаковывает уведомление движка в Envelope.
func NewBlockEnvelope(source string, ev gravity.Event) (*Envelope, error) {
	payload, err := json.Marshal(BlockEventPayload{
		Cell:      ev.Cell,
		Block:     ev.Block,
		BlockName: block.NameOf(ev.Block),
		EntityID:  ev.EntityID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: string(ev.Type),
		Version:   BlockEventVersion,
		Priority:  priorityOf(ev.Type),
		Payload:   payload,
	}, nil
}

// DecodeBlockEvent разбирает Envelope, созданный NewBlockEnvelope.
func DecodeBlockEvent(env *Envelope) (gravity.Event, BlockEventPayload, error) {
	var p BlockEventPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return gravity.Event{}, p, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	ev := gravity.Event{
		Type:     gravity.EventType(env.EventType),
		Cell:     p.Cell,
		Block:    p.Block,
		EntityID: p.EntityID,
	}
	return ev, p, nil
}

// Шаги каскада не должны теряться при переполнении буфера.
func priorityOf(t gravity.EventType) int {
	switch t {
	case gravity.EventEntitySpawned, gravity.EventCellEmptied, gravity.EventBlockLanded, gravity.EventBlockDropped:
		return 5
	default:
		return 2
	}
}

// Publisher реализует gravity.Notifier: уведомления из горутины тиков
// складываются в буфер и публикуются в шину отдельной горутиной, чтобы
// сетевая шина не тормозила тик.
type Publisher struct {
	bus    EventBus
	source string
	log    *logging.Logger

	queue   chan *Envelope
	dropped uint64

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// NewPublisher создаёт издателя с буфером size и запускает горутину отправки.
func NewPublisher(bus EventBus, source string, size int, log *logging.Logger) *Publisher {
	if size <= 0 {
		size = 1024
	}
	p := &Publisher{
		bus:     bus,
		source:  source,
		log:     log,
		queue:   make(chan *Envelope, size),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Notify не блокирует: при переполненном буфере событие отбрасывается.
func (p *Publisher) Notify(ev gravity.Event) {
	env, err := NewBlockEnvelope(p.source, ev)
	if err != nil {
		p.log.Error("Ошибка упаковки события %s: %v", ev.Type, err)
		return
	}

	select {
	case <-p.closing:
		atomic.AddUint64(&p.dropped, 1)
		return
	default:
	}

	select {
	case p.queue <- env:
	default:
		n := atomic.AddUint64(&p.dropped, 1)
		p.log.Warn("Буфер событий переполнен, %s в %v отброшено (всего %d)", ev.Type, ev.Cell, n)
	}
}

// Dropped возвращает число отброшенных событий.
func (p *Publisher) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Close отправляет оставшиеся события и останавливает горутину.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() { close(p.closing) })
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case env := <-p.queue:
			p.publish(env)
		case <-p.closing:
			for {
				select {
				case env := <-p.queue:
					p.publish(env)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(env *Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.bus.Publish(ctx, env); err != nil {
		atomic.AddUint64(&p.dropped, 1)
		p.log.Error("Ошибка публикации %s: %v", env.EventType, err)
	}
}
