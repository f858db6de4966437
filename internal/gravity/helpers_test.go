package gravity

import (
	"testing"

	"github.com/annel0/block-gravity/internal/tick"
	"github.com/annel0/block-gravity/internal/vec"
	"github.com/annel0/block-gravity/internal/world"
	"github.com/annel0/block-gravity/internal/world/block"
	_ "github.com/annel0/block-gravity/internal/world/block/implementations"
	"github.com/stretchr/testify/require"
)

// recorder запоминает уведомления движка по порядку.
type recorder struct {
	events []Event
}

func (r *recorder) Notify(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	world  *world.World
	loop   *tick.Loop
	rec    *recorder
	engine *Engine
}

// newHarness собирает движок над миром с floor = 0 и ручным циклом тиков.
func newHarness(t *testing.T, tune func(cfg *Config)) *harness {
	t.Helper()

	w := world.NewWorld(0)
	loop := tick.NewLoop(0, nil)
	rec := &recorder{}

	cfg := DefaultConfig()
	cfg.World = w
	cfg.Policy = block.MustDefaultPolicy()
	cfg.Scheduler = loop
	cfg.Entities = w.Entities
	cfg.Notifier = rec
	if tune != nil {
		tune(&cfg)
	}

	engine, err := New(cfg)
	require.NoError(t, err, "Движок должен собираться")
	return &harness{world: w, loop: loop, rec: rec, engine: engine}
}

// floor заполняет слой y = 0 камнем в квадрате [-r, r].
func (h *harness) floor(r int) {
	h.world.Fill(vec.Vec3{X: -r, Y: 0, Z: -r}, vec.Vec3{X: r, Y: 0, Z: r}, block.StoneBlockID)
}

// column ставит камень в (x, 1..top, z).
func (h *harness) column(x, z, top int) {
	h.world.Fill(vec.Vec3{X: x, Y: 1, Z: z}, vec.Vec3{X: x, Y: top, Z: z}, block.StoneBlockID)
}

// drain крутит тики, пока разбор очереди активен. Возвращает число тиков.
func (h *harness) drain(t *testing.T, limit int) int {
	t.Helper()
	ticks := 0
	for h.engine.Cascade().Draining() {
		require.Less(t, ticks, limit, "Каскад должен завершиться")
		h.loop.Step()
		ticks++
	}
	return ticks
}

func at(x, y, z int) vec.Vec3 {
	return vec.Vec3{X: x, Y: y, Z: z}
}
