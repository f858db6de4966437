package gravity

import (
	"errors"
	"fmt"

	"github.com/annel0/block-gravity/internal/vec"
)

// ErrInvalidTopology возвращается при несогласованной таблице направлений.
var ErrInvalidTopology = errors.New("invalid support topology")

// AssistCount — число диагональных клеток-помощников у каждого направления.
const AssistCount = 4

// DefaultReach — максимальная дальность бокового перекрытия.
const DefaultReach = 3

// SupportDirection описывает одно горизонтальное направление опоры и
// диагональные клетки, которые проверяются только на расстоянии 1.
type SupportDirection struct {
	Name    string
	Primary vec.Vec3
	Assists []vec.Vec3
}

// Topology — статическая таблица направлений, общая для всех запросов.
type Topology struct {
	Directions []SupportDirection
	Reach      int
}

// DefaultTopology возвращает таблицу N, E, S, W с дальностью 3.
// Север — -Z, восток — +X.
func DefaultTopology() Topology {
	return Topology{
		Reach: DefaultReach,
		Directions: []SupportDirection{
			{Name: "north", Primary: vec.North, Assists: []vec.Vec3{
				{X: -1, Z: -1}, {X: -1, Z: -2}, {X: 1, Z: -2}, {X: 1, Z: -1},
			}},
			{Name: "east", Primary: vec.East, Assists: []vec.Vec3{
				{X: 1, Z: -1}, {X: 2, Z: -1}, {X: 2, Z: 1}, {X: 1, Z: 1},
			}},
			{Name: "south", Primary: vec.South, Assists: []vec.Vec3{
				{X: 1, Z: 1}, {X: 1, Z: 2}, {X: -1, Z: 2}, {X: -1, Z: 1},
			}},
			{Name: "west", Primary: vec.West, Assists: []vec.Vec3{
				{X: -1, Z: -1}, {X: -2, Z: -1}, {X: -2, Z: 1}, {X: -1, Z: 1},
			}},
		},
	}
}

// Validate проверяет таблицу при старте движка.
func (t Topology) Validate() error {
	if t.Reach < 1 {
		return fmt.Errorf("%w: reach %d < 1", ErrInvalidTopology, t.Reach)
	}
	if len(t.Directions) != 4 {
		return fmt.Errorf("%w: want 4 directions, got %d", ErrInvalidTopology, len(t.Directions))
	}

	primaries := make(map[vec.Vec3]struct{}, len(t.Directions))
	for _, d := range t.Directions {
		p := d.Primary
		if p.Y != 0 || p.ManhattanXZ() != 1 {
			return fmt.Errorf("%w: %s: primary %v is not a horizontal unit offset", ErrInvalidTopology, d.Name, p)
		}
		if _, dup := primaries[p]; dup {
			return fmt.Errorf("%w: %s: duplicate primary %v", ErrInvalidTopology, d.Name, p)
		}
		primaries[p] = struct{}{}

		if len(d.Assists) != AssistCount {
			return fmt.Errorf("%w: %s: want %d assists, got %d", ErrInvalidTopology, d.Name, AssistCount, len(d.Assists))
		}
		seen := make(map[vec.Vec3]struct{}, AssistCount)
		for _, a := range d.Assists {
			if a.Y != 0 || a.IsZero() || a == p {
				return fmt.Errorf("%w: %s: bad assist %v", ErrInvalidTopology, d.Name, a)
			}
			// Диагональ: 1 или 2 шага вдоль направления и ровно 1 вбок
			along := a.X*p.X + a.Z*p.Z
			if along < 1 || along > 2 {
				return fmt.Errorf("%w: %s: assist %v is not 1..2 steps toward %v", ErrInvalidTopology, d.Name, a, p)
			}
			if across := a.X*p.Z - a.Z*p.X; across != 1 && across != -1 {
				return fmt.Errorf("%w: %s: assist %v is not one step off %v", ErrInvalidTopology, d.Name, a, p)
			}
			if _, dup := seen[a]; dup {
				return fmt.Errorf("%w: %s: duplicate assist %v", ErrInvalidTopology, d.Name, a)
			}
			seen[a] = struct{}{}
		}
	}
	return nil
}
