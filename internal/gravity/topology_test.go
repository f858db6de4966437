package gravity

import (
	"testing"

	"github.com/annel0/block-gravity/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTopology_Valid(t *testing.T) {
	topo := DefaultTopology()

	require.NoError(t, topo.Validate())
	assert.Equal(t, DefaultReach, topo.Reach)
	require.Len(t, topo.Directions, 4)

	// Фиксированный порядок N, E, S, W
	assert.Equal(t, vec.North, topo.Directions[0].Primary)
	assert.Equal(t, vec.East, topo.Directions[1].Primary)
	assert.Equal(t, vec.South, topo.Directions[2].Primary)
	assert.Equal(t, vec.West, topo.Directions[3].Primary)

	for _, d := range topo.Directions {
		assert.Len(t, d.Assists, AssistCount, "У направления %s должно быть 4 помощника", d.Name)
	}
}

func TestTopology_ValidateRejects(t *testing.T) {
	cases := map[string]func(topo *Topology){
		"нулевая дальность": func(topo *Topology) { topo.Reach = 0 },
		"три направления":   func(topo *Topology) { topo.Directions = topo.Directions[:3] },
		"вертикальное направление": func(topo *Topology) {
			topo.Directions[0].Primary = vec.Down
		},
		"повтор направления": func(topo *Topology) {
			topo.Directions[1].Primary = topo.Directions[0].Primary
			topo.Directions[1].Assists = topo.Directions[0].Assists
		},
		"три помощника": func(topo *Topology) {
			topo.Directions[2].Assists = topo.Directions[2].Assists[:3]
		},
		"повтор помощника": func(topo *Topology) {
			topo.Directions[0].Assists = []vec.Vec3{{X: -1, Z: -1}, {X: -1, Z: -1}, {X: 1, Z: -2}, {X: 1, Z: -1}}
		},
		"помощник в обратную сторону": func(topo *Topology) {
			topo.Directions[0].Assists = []vec.Vec3{{X: -1, Z: 1}, {X: -1, Z: -2}, {X: 1, Z: -2}, {X: 1, Z: -1}}
		},
		"помощник на оси направления": func(topo *Topology) {
			topo.Directions[0].Assists = []vec.Vec3{{X: 0, Z: -2}, {X: -1, Z: -2}, {X: 1, Z: -2}, {X: 1, Z: -1}}
		},
		"помощник дальше двух шагов": func(topo *Topology) {
			topo.Directions[0].Assists = []vec.Vec3{{X: 3, Z: -1}, {X: -1, Z: -2}, {X: 1, Z: -2}, {X: 1, Z: -1}}
		},
		"помощник через клетку вбок": func(topo *Topology) {
			topo.Directions[1].Assists = []vec.Vec3{{X: 1, Z: -2}, {X: 2, Z: -1}, {X: 2, Z: 1}, {X: 1, Z: 1}}
		},
		"помощник не на уровне": func(topo *Topology) {
			topo.Directions[3].Assists = []vec.Vec3{{X: -1, Y: 1, Z: -1}, {X: -2, Z: -1}, {X: -2, Z: 1}, {X: -1, Z: 1}}
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			topo := DefaultTopology()
			mutate(&topo)
			assert.ErrorIs(t, topo.Validate(), ErrInvalidTopology)
		})
	}
}

func TestNew_RejectsInvalidTopology(t *testing.T) {
	_, err := New(Config{
		World:      nil,
		TickBudget: 1,
	})
	assert.Error(t, err, "Без мира движок не собирается")

	h := newHarness(t, nil)
	cfg := DefaultConfig()
	cfg.World = h.world
	cfg.Scheduler = h.loop
	cfg.Entities = h.world.Entities
	cfg.Topology.Reach = -1

	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidTopology)
}
